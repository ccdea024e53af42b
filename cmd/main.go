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
	"fmt"
	"os"

	"github.com/jerry-enebeli/offline"
	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/internal/notification"
	"github.com/jerry-enebeli/offline/internal/traces"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// skipInstance marks commands that only need the configuration, not an open queue.
const skipInstance = "offline.skip-instance"

// CLI wraps the root cobra command.
type CLI struct {
	cmd *cobra.Command
}

// offlineInstance is filled by preRun and shared by every subcommand.
type offlineInstance struct {
	offline     *offline.Offline
	cnf         *config.Configuration
	logShutdown func(context.Context) error
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and opens the queue before any command runs.
func preRun(app *offlineInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if cnf.EnableLogExport {
			hook, shutdown, err := traces.SetupLogExport(cnf.ProjectName, os.Stdout)
			if err != nil {
				return fmt.Errorf("error setting up log export: %w", err)
			}
			logrus.AddHook(hook)
			app.logShutdown = shutdown
		}

		if cmd.Annotations[skipInstance] == "true" {
			return nil
		}

		o, err := offline.New(cmd.Context(), cnf)
		if err != nil {
			notification.NotifyError(err)
			return err
		}
		app.offline = o
		return nil
	}
}

// postRun releases what preRun opened.
func postRun(app *offlineInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if app.logShutdown != nil {
			if err := app.logShutdown(context.Background()); err != nil {
				logrus.WithError(err).Warn("failed to flush exported logs")
			}
		}
		if app.offline != nil {
			return app.offline.Close()
		}
		return nil
	}
}

func NewCLI() *CLI {
	var configFile string
	app := &offlineInstance{}

	rootCmd := &cobra.Command{
		Use:          "offline",
		Short:        "Offline mutation queue",
		SilenceUsage: true,
		Run:          func(cmd *cobra.Command, args []string) { _ = cmd.Help() },
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./offline.json", "Configuration file for the offline queue")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)
	rootCmd.PersistentPostRunE = postRun(app)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(queueCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(configCommands(app))

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
