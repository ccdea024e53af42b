/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/offline/api"
	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/internal/traces"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

const shutdownTimeout = 10 * time.Second

/*
newHTTPServer builds the API server. With SSL enabled, certificates for the configured
domain (localhost when none is set) are obtained and renewed by CertMagic.
*/
func newHTTPServer(ctx context.Context, r *gin.Engine, conf config.ServerConfig) (*http.Server, error) {
	server := &http.Server{
		Addr:    ":" + conf.Port,
		Handler: r,
	}
	if !conf.SSL {
		return server, nil
	}

	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		logrus.Info("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}
	if err := cfg.ManageSync(ctx, domains); err != nil {
		return nil, err
	}

	server.TLSConfig = cfg.TLSConfig()
	return server, nil
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := traces.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %w", err)
	}
	return shutdown, nil
}

// runServer serves until ctx is cancelled, then shuts the server down gracefully.
func runServer(ctx context.Context, server *http.Server, ssl bool) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if ssl {
			logrus.Infof("Starting HTTPS server on %s", server.Addr)
			err = server.ListenAndServeTLS("", "")
		} else {
			logrus.Infof("Starting server on http://localhost%s", server.Addr)
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// serverCommands starts the inspection API and, with sync.auto_sync, the background
// sync processor.
func serverCommands(app *offlineInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "start the offline queue server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logrus.AddHook(&apmlogrus.Hook{})

			shutdown, err := initializeTracing(ctx, app.cnf)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logrus.WithError(err).Error("error during tracing shutdown")
				}
			}()

			if app.cnf.Sync.AutoSync {
				app.offline.Processor().Start(ctx)
				app.offline.Processor().TriggerNow()
			}

			router := api.NewAPI(app.offline).Router()
			server, err := newHTTPServer(ctx, router, app.cnf.Server)
			if err != nil {
				return err
			}
			return runServer(ctx, server, app.cnf.Server.SSL)
		},
	}
}
