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
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jerry-enebeli/offline"
	"github.com/jerry-enebeli/offline/model"
)

// EnqueueAction is the body of POST /actions.
type EnqueueAction struct {
	Type       model.ActionType       `json:"type"`
	Endpoint   string                 `json:"endpoint"`
	Method     string                 `json:"method"`
	Payload    map[string]interface{} `json:"payload"`
	Priority   *int                   `json:"priority"`
	MaxRetries *int                   `json:"max_retries"`
	TempID     string                 `json:"temp_id"`
	DedupeKey  string                 `json:"dedupe_key"`
}

// ClearScope selects which records DELETE /actions prunes.
type ClearScope string

const (
	ScopeSynced ClearScope = "synced"
	ScopeFailed ClearScope = "failed"
	ScopeAll    ClearScope = "all"
)

func actionTypes() []interface{} {
	out := make([]interface{}, 0, len(model.ActionTypes))
	for _, t := range model.ActionTypes {
		out = append(out, t)
	}
	return out
}

func methods() []interface{} {
	out := make([]interface{}, 0, len(model.Methods))
	for _, m := range model.Methods {
		out = append(out, m)
	}
	return out
}

func (a *EnqueueAction) ValidateEnqueueAction() error {
	a.Type = model.ActionType(strings.ToUpper(strings.TrimSpace(string(a.Type))))
	a.Method = strings.ToUpper(strings.TrimSpace(a.Method))

	return validation.ValidateStruct(a,
		validation.Field(&a.Type, validation.Required, validation.In(actionTypes()...)),
		validation.Field(&a.Endpoint, validation.Required, validation.By(func(value interface{}) error {
			endpoint, _ := value.(string)
			if !strings.HasPrefix(endpoint, "/") && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				return errors.New("must be a path starting with / or an absolute URL")
			}
			return nil
		})),
		validation.Field(&a.Method, validation.In(methods()...)),
		validation.Field(&a.Priority, validation.Min(0)),
		validation.Field(&a.MaxRetries, validation.By(func(value interface{}) error {
			if n, ok := value.(*int); ok && n != nil && *n < 1 {
				return errors.New("must be at least 1")
			}
			return nil
		})),
		validation.Field(&a.TempID, validation.When(a.TempID != "", validation.By(func(value interface{}) error {
			if !model.IsTempID(value.(string)) {
				return errors.New("must start with temp_")
			}
			return nil
		}))),
	)
}

func (a *EnqueueAction) ToOptions() offline.EnqueueOptions {
	return offline.EnqueueOptions{
		Priority:   a.Priority,
		MaxRetries: a.MaxRetries,
		TempID:     a.TempID,
		DedupeKey:  a.DedupeKey,
	}
}

// ValidateStatus accepts an empty status or one of the action statuses.
func ValidateStatus(status string) error {
	if status == "" {
		return nil
	}
	for _, s := range model.ActionStatuses {
		if string(s) == status {
			return nil
		}
	}
	return errors.New("status must be one of pending, processing, success, failed, conflict")
}

func ParseClearScope(scope string) (ClearScope, error) {
	switch ClearScope(strings.ToLower(scope)) {
	case "", ScopeSynced:
		return ScopeSynced, nil
	case ScopeFailed:
		return ScopeFailed, nil
	case ScopeAll:
		return ScopeAll, nil
	}
	return "", errors.New("scope must be one of synced, failed, all")
}
