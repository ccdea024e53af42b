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

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jerry-enebeli/offline/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "store unavailable"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestNotFound(t *testing.T) {
	err := apierror.NotFound("action", "action_1")
	assert.Equal(t, apierror.ErrNotFound, err.Code)
	assert.Equal(t, "action action_1 not found", err.Message)
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil), http.StatusNotFound},
		{"conflict", apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil), http.StatusConflict},
		{"bad request", apierror.NewAPIError(apierror.ErrBadRequest, "Bad request", nil), http.StatusBadRequest},
		{"invalid input", apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil), http.StatusBadRequest},
		{"unauthorized", apierror.NewAPIError(apierror.ErrUnauthorized, "Unauthorized", nil), http.StatusUnauthorized},
		{"rate limited", apierror.NewAPIError(apierror.ErrTooManyRequests, "Slow down", nil), http.StatusTooManyRequests},
		{"queue busy", apierror.NewAPIError(apierror.ErrQueueBusy, "Busy", nil), http.StatusConflict},
		{"internal", apierror.NewAPIError(apierror.ErrInternalServer, "Internal server error", nil), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("handler: %w", apierror.NotFound("action", "x")), http.StatusNotFound},
		{"unknown code", apierror.APIError{Code: "WHAT"}, http.StatusInternalServerError},
		{"plain error", errors.New("Unknown error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestBody(t *testing.T) {
	body := apierror.Body(errors.New("boom"))
	assert.Equal(t, apierror.ErrInternalServer, body.Code)
	assert.Equal(t, "boom", body.Message)

	body = apierror.Body(apierror.NotFound("action", "a"))
	assert.Equal(t, apierror.ErrNotFound, body.Code)
}
