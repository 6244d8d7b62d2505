// Package apperr defines the closed error taxonomy for the coupon core.
// Errors carry a stable code and structured fields; mapping to HTTP status
// codes happens only at the transport boundary (pkg/response).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is a stable, externally visible error code.
type Code string

const (
	CodeUnauthorized Code = "AUTH_401"
	CodeForbidden    Code = "AUTH_403"
	CodeNotFound     Code = "COUPON_404"
	CodeConflict     Code = "COUPON_409"
	CodeValidation   Code = "VALIDATION_422"
	CodeServer       Code = "SERVER_500"
)

// Error is a tagged application error. RedeemedAt is set only for
// CodeConflict and carries the original redemption time.
type Error struct {
	Code       Code
	Message    string
	RedeemedAt *time.Time
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation returns a VALIDATION_422 error for malformed input.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NotFound returns a COUPON_404 error for an unknown token.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// AlreadyRedeemed returns a COUPON_409 error carrying the original
// redemption time. Not a bug: a legitimate concurrent-use outcome.
func AlreadyRedeemed(redeemedAt time.Time) *Error {
	t := redeemedAt
	return &Error{
		Code:       CodeConflict,
		Message:    fmt.Sprintf("this coupon was already redeemed at %s", redeemedAt.Format(time.RFC3339)),
		RedeemedAt: &t,
	}
}

// Unauthorized returns an AUTH_401 error.
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Forbidden returns an AUTH_403 error.
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// Server returns a SERVER_500 error wrapping an internal cause. The cause
// is logged server-side and never exposed to the caller.
func Server(message string, cause error) *Error {
	return &Error{Code: CodeServer, Message: message, cause: cause}
}

// From returns err as *Error, wrapping unknown errors as SERVER_500 so no
// internal diagnostic detail leaks to the caller.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Server("an unexpected error occurred", err)
}

// HTTPStatus maps an error code to its transport status code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
