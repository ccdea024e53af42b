package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrConflict        ErrorCode = "CONFLICT"
	ErrBadRequest      ErrorCode = "BAD_REQUEST"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrQueueBusy       ErrorCode = "QUEUE_BUSY"
	ErrInternalServer  ErrorCode = "INTERNAL_SERVER_ERROR"
)

var statusByCode = map[ErrorCode]int{
	ErrNotFound:        http.StatusNotFound,
	ErrConflict:        http.StatusConflict,
	ErrBadRequest:      http.StatusBadRequest,
	ErrInvalidInput:    http.StatusBadRequest,
	ErrUnauthorized:    http.StatusUnauthorized,
	ErrTooManyRequests: http.StatusTooManyRequests,
	ErrQueueBusy:       http.StatusConflict,
	ErrInternalServer:  http.StatusInternalServerError,
}

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError builds an APIError. Details are logged, not hidden from the caller.
func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.WithField("code", code).Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func NotFound(resource, id string) APIError {
	return NewAPIError(ErrNotFound, fmt.Sprintf("%s %s not found", resource, id), nil)
}

// MapErrorToHTTPStatus returns the status for err. Errors that are not an APIError,
// and codes without a mapping, are internal errors.
func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		if status, ok := statusByCode[apiErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Body returns the JSON response body for err.
func Body(err error) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return APIError{Code: ErrInternalServer, Message: err.Error()}
}
