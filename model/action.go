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

package model

import (
	"maps"
	"time"
)

// ActionType categorizes the intent of a queued mutation. It says nothing about transport.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
	ActionPatch  ActionType = "PATCH"
)

// ActionTypes lists every valid ActionType.
var ActionTypes = []ActionType{ActionCreate, ActionUpdate, ActionDelete, ActionPatch}

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	for _, v := range ActionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// DefaultMethod returns the HTTP method conventionally used to replay an action of type t.
func (t ActionType) DefaultMethod() string {
	switch t {
	case ActionCreate:
		return MethodPost
	case ActionUpdate:
		return MethodPut
	case ActionDelete:
		return MethodDelete
	case ActionPatch:
		return MethodPatch
	default:
		return MethodPost
	}
}

const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodPatch  = "PATCH"
	MethodDelete = "DELETE"
)

// Methods lists the HTTP methods a queued action may be replayed with.
var Methods = []string{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ActionStatus is the lifecycle state of a QueuedAction.
//
//	pending -> processing -> success (terminal)
//	                      -> pending (retry)
//	                      -> failed  (terminal, retries exhausted)
//
// conflict is reserved and never assigned.
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusProcessing ActionStatus = "processing"
	StatusSuccess    ActionStatus = "success"
	StatusFailed     ActionStatus = "failed"
	StatusConflict   ActionStatus = "conflict"
)

// ActionStatuses lists every ActionStatus.
var ActionStatuses = []ActionStatus{StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusConflict}

// IsTerminal reports whether no automatic transition leaves s.
func (s ActionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// QueuedAction is one durable record of an attempted mutation.
type QueuedAction struct {
	ID          string                 `json:"id"`
	Type        ActionType             `json:"type"`
	Endpoint    string                 `json:"endpoint"`
	Method      string                 `json:"method"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Status      ActionStatus           `json:"status"`
	RetryCount  int                    `json:"retryCount"`
	MaxRetries  int                    `json:"maxRetries"`
	Priority    int                    `json:"priority"`
	Timestamp   time.Time              `json:"timestamp"`
	Sequence    int64                  `json:"sequence"`
	TempID      string                 `json:"tempId,omitempty"`
	ServerID    string                 `json:"serverId,omitempty"`
	Error       string                 `json:"error,omitempty"`
	DedupeKey   string                 `json:"dedupeKey,omitempty"`
	NextRetryAt time.Time              `json:"nextRetryAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// SyncResult is the outcome of replaying one action during a ProcessQueue run.
type SyncResult struct {
	ID      string                 `json:"id"`
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Clone returns a copy of the action whose payload map can be mutated independently.
func (a *QueuedAction) Clone() *QueuedAction {
	if a == nil {
		return nil
	}
	c := *a
	c.Payload = maps.Clone(a.Payload)
	return &c
}

// CanRetry reports whether the action still has retries left.
func (a *QueuedAction) CanRetry() bool {
	return a.RetryCount < a.MaxRetries
}

// ReadyAt reports whether a pending action may be replayed at t.
func (a *QueuedAction) ReadyAt(t time.Time) bool {
	return a.Status == StatusPending && (a.NextRetryAt.IsZero() || !a.NextRetryAt.After(t))
}

// Identity returns the correlation key of the action as a tagged identity.
// The zero Identity is returned for actions that carry neither a temp nor a server id.
func (a *QueuedAction) Identity() Identity {
	switch {
	case a.TempID != "" && a.ServerID != "":
		return TempIdentity(a.TempID).Resolve(a.ServerID)
	case a.ServerID != "":
		return ServerIdentity(a.ServerID)
	case a.TempID != "":
		return TempIdentity(a.TempID)
	}
	return Identity{}
}

// Before reports whether a sorts ahead of b: higher priority first, then earlier timestamp,
// then lower sequence number.
func (a *QueuedAction) Before(b *QueuedAction) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Sequence < b.Sequence
}
