// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err: &Error{
				Type:    ErrInvalidRequest,
				Message: "test message",
				Cause:   errors.New("underlying error"),
			},
			want: "invalid_request: test message: underlying error",
		},
		{
			name: "error without cause",
			err: &Error{
				Type:    ErrUnavailable,
				Message: "test message",
				Cause:   nil,
			},
			want: "unavailable: test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{
		Type:    ErrInternal,
		Message: "test message",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Error.Unwrap() = %v, want %v", got, cause)
	}

	errNoCause := &Error{
		Type:    ErrInternal,
		Message: "test message",
		Cause:   nil,
	}

	if got := errNoCause.Unwrap(); got != nil {
		t.Errorf("Error.Unwrap() = %v, want nil", got)
	}
}

func TestNewError(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewError(ErrInvalidRequest, "test message", cause)

	if err.Type != ErrInvalidRequest {
		t.Errorf("NewError().Type = %v, want %v", err.Type, ErrInvalidRequest)
	}
	if err.Message != "test message" {
		t.Errorf("NewError().Message = %v, want %v", err.Message, "test message")
	}
	if err.Cause != cause {
		t.Errorf("NewError().Cause = %v, want %v", err.Cause, cause)
	}
}

func TestNewErrorConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name        string
		constructor func(string, error) *Error
		wantType    string
	}{
		{
			name:        "NewInvalidRequestError",
			constructor: NewInvalidRequestError,
			wantType:    ErrInvalidRequest,
		},
		{
			name:        "NewUnavailableError",
			constructor: NewUnavailableError,
			wantType:    ErrUnavailable,
		},
		{
			name:        "NewUpstreamDeniedError",
			constructor: NewUpstreamDeniedError,
			wantType:    ErrUpstreamDenied,
		},
		{
			name:        "NewValidationError",
			constructor: NewValidationError,
			wantType:    ErrValidation,
		},
		{
			name:        "NewNotFoundError",
			constructor: NewNotFoundError,
			wantType:    ErrNotFound,
		},
		{
			name:        "NewInternalError",
			constructor: NewInternalError,
			wantType:    ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("test message", cause)
			if err.Type != tt.wantType {
				t.Errorf("%s().Type = %v, want %v", tt.name, err.Type, tt.wantType)
			}
			if err.Message != "test message" {
				t.Errorf("%s().Message = %v, want %v", tt.name, err.Message, "test message")
			}
			if err.Cause != cause {
				t.Errorf("%s().Cause = %v, want %v", tt.name, err.Cause, cause)
			}
		})
	}
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{
			name:    "IsInvalidRequest with matching error",
			err:     NewInvalidRequestError("test", nil),
			checker: IsInvalidRequest,
			want:    true,
		},
		{
			name:    "IsInvalidRequest with non-matching error",
			err:     NewUnavailableError("test", nil),
			checker: IsInvalidRequest,
			want:    false,
		},
		{
			name:    "IsInvalidRequest with non-Error type",
			err:     errors.New("regular error"),
			checker: IsInvalidRequest,
			want:    false,
		},
		{
			name:    "IsUnavailable with matching error",
			err:     NewUnavailableError("test", nil),
			checker: IsUnavailable,
			want:    true,
		},
		{
			name:    "IsUnavailable with wrapped error",
			err:     fmt.Errorf("outer: %w", NewUnavailableError("test", nil)),
			checker: IsUnavailable,
			want:    true,
		},
		{
			name:    "IsUpstreamDenied with matching error",
			err:     NewUpstreamDeniedError("test", nil),
			checker: IsUpstreamDenied,
			want:    true,
		},
		{
			name:    "IsValidation with matching error",
			err:     NewValidationError("test", nil),
			checker: IsValidation,
			want:    true,
		},
		{
			name:    "IsNotFound with matching error",
			err:     NewNotFoundError("test", nil),
			checker: IsNotFound,
			want:    true,
		},
		{
			name:    "IsInternal with matching error",
			err:     NewInternalError("test", nil),
			checker: IsInternal,
			want:    true,
		},
		{
			name:    "IsInternal with nil",
			err:     nil,
			checker: IsInternal,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checker(tt.err); got != tt.want {
				t.Errorf("checker(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", NewInvalidRequestError("bad", nil), http.StatusBadRequest},
		{"validation", NewValidationError("bad input", nil), http.StatusUnprocessableEntity},
		{"not found", NewNotFoundError("missing", nil), http.StatusNotFound},
		{"upstream denied", NewUpstreamDeniedError("denied", nil), http.StatusBadGateway},
		{"unavailable", NewUnavailableError("down", nil), http.StatusServiceUnavailable},
		{"internal", NewInternalError("boom", nil), http.StatusInternalServerError},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
		{"wrapped taxonomy error", fmt.Errorf("ctx: %w", NewNotFoundError("missing", nil)), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %v, want %v", got, tt.want)
			}
		})
	}
}
