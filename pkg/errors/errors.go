// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error taxonomy used across the gateway.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrInvalidRequest is returned when the inbound request is malformed
	ErrInvalidRequest = "invalid_request"

	// ErrUnavailable is returned when a backing service cannot be reached
	ErrUnavailable = "unavailable"

	// ErrUpstreamDenied is returned when the core banking upstream rejects an operation
	ErrUpstreamDenied = "upstream_denied"

	// ErrValidation is returned when user input fails a validation rule
	ErrValidation = "validation"

	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = "not_found"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidRequestError creates a new invalid request error
func NewInvalidRequestError(message string, cause error) *Error {
	return NewError(ErrInvalidRequest, message, cause)
}

// NewUnavailableError creates a new unavailable error
func NewUnavailableError(message string, cause error) *Error {
	return NewError(ErrUnavailable, message, cause)
}

// NewUpstreamDeniedError creates a new upstream denied error
func NewUpstreamDeniedError(message string, cause error) *Error {
	return NewError(ErrUpstreamDenied, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *Error {
	return NewError(ErrValidation, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// typeOf extracts the taxonomy type from err, unwrapping as needed.
func typeOf(err error) (string, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

// IsInvalidRequest checks if the error is an invalid request error
func IsInvalidRequest(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrInvalidRequest
}

// IsUnavailable checks if the error is an unavailable error
func IsUnavailable(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrUnavailable
}

// IsUpstreamDenied checks if the error is an upstream denied error
func IsUpstreamDenied(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrUpstreamDenied
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrValidation
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrNotFound
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrInternal
}

// Code maps an error to the HTTP status code it should surface as.
// Unrecognized errors map to 500.
func Code(err error) int {
	t, ok := typeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch t {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstreamDenied:
		return http.StatusBadGateway
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
