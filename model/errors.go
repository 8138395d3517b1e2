package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the console surfaces to the view layer.
type ErrorKind string

// Error kinds.
const (
	KindValidation  ErrorKind = "validation"
	KindTransport   ErrorKind = "transport"
	KindTimeout     ErrorKind = "timeout"
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not_found"
	KindServer      ErrorKind = "server"
	KindUnavailable ErrorKind = "unavailable"
	KindInternal    ErrorKind = "internal"
)

// DefaultErrorMessage is used when an error response carries no parseable
// message.
const DefaultErrorMessage = "Request failed"

// Error is the single error type returned by the API adapter, the validation
// layer and the console controllers. It implements the error interface.
type Error struct {
	Kind    ErrorKind    `json:"kind"`
	Message string       `json:"message"`
	Status  int          `json:"status,omitempty"`
	Details []FieldError `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// KindOf returns the kind of err, or KindInternal for errors that did not
// originate in the console.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a console error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewValidationError returns a validation error with field-level details.
func NewValidationError(details []FieldError) *Error {
	msg := "One or more fields are invalid"
	if len(details) == 1 {
		msg = details[0].Message
	}
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// NewTransportError wraps a failure that produced no HTTP response.
func NewTransportError(cause error) *Error {
	return &Error{Kind: KindTransport, Message: "Network error: the server could not be reached", cause: cause}
}

// NewTimeoutError wraps a request that exceeded its deadline.
func NewTimeoutError(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "The server did not respond in time", cause: cause}
}

// NewAuthError returns an auth error for a 401/403 response.
func NewAuthError(status int, msg string) *Error {
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return &Error{Kind: KindAuth, Message: msg, Status: status}
}

// NewNotFoundError returns a not-found error.
func NewNotFoundError(msg string) *Error {
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return &Error{Kind: KindNotFound, Message: msg, Status: 404}
}

// NewServerError returns an error for any other non-2xx response.
func NewServerError(status int, msg string) *Error {
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return &Error{Kind: KindServer, Message: msg, Status: status}
}

// NewUnavailableError is returned while the circuit breaker is open.
func NewUnavailableError() *Error {
	return &Error{Kind: KindUnavailable, Message: "The CRM service is temporarily unavailable"}
}

// NewInternalError returns an internal error wrapping cause.
func NewInternalError(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred", cause: cause}
}
