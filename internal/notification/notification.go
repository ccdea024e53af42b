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
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jerry-enebeli/offline/config"
	"github.com/jerry-enebeli/offline/internal/request"
	"github.com/sirupsen/logrus"
)

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func slackPayload(projectName string, err error, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("Error From %s 🐞", projectName), Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", err)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", at.Format(time.RFC822))}}},
	}}
}

// SlackNotification posts err to the Slack incoming webhook at webhookURL.
func SlackNotification(webhookURL, projectName string, err error) error {
	payload, e := request.ToJsonReq(slackPayload(projectName, err, time.Now()))
	if e != nil {
		return e
	}

	req, e := http.NewRequest(http.MethodPost, webhookURL, payload)
	if e != nil {
		return e
	}

	resp, e := request.Call(req, nil)
	if e != nil {
		return e
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("slack webhook returned %s", resp.Status)
	}
	return nil
}

// NotifyError logs systemError and forwards it to Slack when a webhook is configured.
// It returns immediately; delivery happens on its own goroutine.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			if err := SlackNotification(conf.Notification.Slack.WebhookUrl, conf.ProjectName, systemError); err != nil {
				logrus.WithError(err).Warn("failed to send slack notification")
			}
		}
	}(systemError)
}
