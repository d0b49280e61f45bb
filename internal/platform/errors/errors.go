// Package errors classifies the errors panel handlers return so one middleware
// can turn them into a status code, a JSON body and a log line.
package errors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ErrorType is the category a handler error is reported under.
type ErrorType string

const (
	// TypeValidation is rejected form input, such as invalid site settings.
	TypeValidation ErrorType = "validation"
	// TypeForbidden is a signed-in user reaching an admin-only page.
	TypeForbidden ErrorType = "forbidden"
	// TypeRateLimited is a request refused by a per-client limiter.
	TypeRateLimited ErrorType = "rate_limited"
	// TypeInternal is a failing store, session or renderer.
	TypeInternal ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	TypeValidation:  http.StatusBadRequest,
	TypeForbidden:   http.StatusForbidden,
	TypeRateLimited: http.StatusTooManyRequests,
	TypeInternal:    http.StatusInternalServerError,
}

// Error is a classified handler error. Message is shown to the client; Cause
// is only logged.
type Error struct {
	Type       ErrorType
	Message    string
	Cause      error
	Context    map[string]any
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the type to a status code. Unknown types are 500.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByType[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newError(typ ErrorType, message string, cause error) *Error {
	return &Error{Type: typ, Message: message, Cause: cause, Context: map[string]any{}}
}

// ValidationError reports rejected input (400).
func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

// InvalidInput reports a domain validation failure, using its text as the
// client message (400).
func InvalidInput(cause error) *Error {
	return newError(TypeValidation, cause.Error(), cause)
}

// ForbiddenError reports a missing permission (403).
func ForbiddenError(message string) *Error {
	return newError(TypeForbidden, message, nil)
}

// RateLimitedError reports a refused request (429). retryAfter is sent as the
// Retry-After header when positive.
func RateLimitedError(message string, retryAfter time.Duration) *Error {
	e := newError(TypeRateLimited, message, nil)
	e.RetryAfter = retryAfter
	return e
}

// InternalError wraps a failure the client cannot fix (500).
func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithContext attaches a field that is both logged and sent to the client.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds; 0 means unset.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// ErrorResponse is the JSON body written for a classified error.
type ErrorResponse struct {
	Error      string         `json:"error"`
	Type       ErrorType      `json:"type"`
	Context    map[string]any `json:"context,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:      e.Message,
		Type:       e.Type,
		Context:    e.Context,
		RetryAfter: e.RetryAfterSeconds(),
	}
}

// AsStructuredError finds the *Error in err's chain. Anything else is
// reported as an internal error whose cause is err.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}

// StatusOf is the status a returned handler error is answered with; nil is
// 200.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsStructuredError(err).HTTPStatus()
}
