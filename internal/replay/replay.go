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

// Package replay sends queued actions to the backend over HTTP.
package replay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/internal/request"
	"github.com/jerry-enebeli/offline/model"
)

// IdempotencyHeader carries the action id so the backend can drop duplicate replays.
const IdempotencyHeader = "Idempotency-Key"

// TempIDHeader carries the temp id of the entity a CREATE action makes.
const TempIDHeader = "X-Offline-Temp-Id"

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
	Body       map[string]interface{}
}

func (e *StatusError) Error() string {
	if msg, ok := e.Body["error"].(string); ok && msg != "" {
		return fmt.Sprintf("sync request failed with status %s: %s", e.Status, msg)
	}
	return fmt.Sprintf("sync request failed with status %s", e.Status)
}

// Client replays actions against a base URL. It does not retry; retries belong to the queue.
type Client struct {
	baseURL   string
	headers   map[string]string
	authToken string
	username  string
	password  string
	timeout   time.Duration
	http      *http.Client
}

// NewClient builds a Client from the sync configuration. A nil httpClient uses a client
// on the default transport.
func NewClient(cfg config.SyncConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		headers:   cfg.Headers,
		authToken: cfg.AuthToken,
		username:  cfg.Username,
		password:  cfg.Password,
		timeout:   cfg.SyncTimeout(),
		http:      httpClient,
	}
}

// Sync sends action and returns the decoded response body. A body that is not a JSON
// object is returned under the "data" key.
func (c *Client) Sync(ctx context.Context, action *model.QueuedAction) (map[string]interface{}, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if action.Payload != nil && action.Method != http.MethodGet {
		payload, err := request.ToJsonReq(action.Payload)
		if err != nil {
			return nil, err
		}
		body = payload
	}

	req, err := http.NewRequestWithContext(ctx, action.Method, c.url(action.Endpoint), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	switch {
	case c.authToken != "":
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	case c.username != "":
		req.Header.Set("Authorization", "Basic "+request.BasicAuth(c.username, c.password))
	}
	req.Header.Set(IdempotencyHeader, action.ID)
	if action.TempID != "" {
		req.Header.Set(TempIDHeader, action.TempID)
	}

	var decoded interface{}
	resp, err := request.CallWithClient(c.http, req, &decoded)
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: asObject(decoded)}
	}
	if err != nil {
		return nil, err
	}
	return asObject(decoded), nil
}

func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

func asObject(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return t
	default:
		return map[string]interface{}{"data": t}
	}
}
