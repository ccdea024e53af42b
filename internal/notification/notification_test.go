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

package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jerry-enebeli/offline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotification_PostsBlocks(t *testing.T) {
	var received slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := SlackNotification(server.URL, "Offline Queue", errors.New("action_1 failed"))
	require.NoError(t, err)

	require.Len(t, received.Blocks, 3)
	assert.Equal(t, "Error From Offline Queue 🐞", received.Blocks[0].Text.Text)
	assert.Contains(t, received.Blocks[1].Fields[0].Text, "action_1 failed")
}

func TestSlackNotification_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := SlackNotification(server.URL, "Offline Queue", errors.New("boom"))
	assert.ErrorContains(t, err, "403")
}

func TestNotifyError_SendsToConfiguredWebhook(t *testing.T) {
	hits := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config.MockConfig(&config.Configuration{
		ProjectName:  "Offline Queue",
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: server.URL}},
	})

	NotifyError(errors.New("retries exhausted"))

	select {
	case <-hits:
	case <-time.After(2 * time.Second):
		t.Fatal("slack webhook was not called")
	}
}
