// Package errors defines the service error taxonomy shared by handlers,
// middleware and workers, and its mapping onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	CodeAuthorization  Code = "AUTHORIZATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeRateLimit      Code = "RATE_LIMITED"
	CodeDependency     Code = "DEPENDENCY_ERROR"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// ServiceError is the canonical error carried across layer boundaries.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value detail and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error and returns the error.
func (e *ServiceError) WithCause(err error) *ServiceError {
	e.cause = err
	return e
}

func newError(code Code, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Validation reports malformed or missing input.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message)
}

// ValidationFields reports a set of violated input fields.
func ValidationFields(fields []string) *ServiceError {
	return Validation("invalid request").WithDetails("fields", fields)
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(message string) *ServiceError {
	return newError(CodeAuthentication, http.StatusUnauthorized, message)
}

// Forbidden reports insufficient role or permission.
func Forbidden(message string) *ServiceError {
	return newError(CodeAuthorization, http.StatusForbidden, message)
}

// NotFound reports a missing resource.
func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// Conflict reports a duplicate resource.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message)
}

// RateLimited reports an exhausted rate-limit bucket.
func RateLimited(max int, window string) *ServiceError {
	return newError(CodeRateLimit, http.StatusTooManyRequests, "rate limit exceeded").
		WithDetails("max_requests", max).
		WithDetails("window", window)
}

// Dependency reports a failed backend adapter or external service.
func Dependency(backend string, err error) *ServiceError {
	return newError(CodeDependency, http.StatusBadGateway, fmt.Sprintf("%s unavailable", backend)).WithCause(err)
}

// Internal reports an uncategorised failure. The message returned to callers
// stays generic; the cause is for logs only.
func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "internal server error"
	}
	return newError(CodeInternal, http.StatusInternalServerError, message).WithCause(err)
}

// GetServiceError returns err as a *ServiceError, or nil when it is not one.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// HTTPStatus maps any error onto a response status. Uncategorised errors map
// to 500.
func HTTPStatus(err error) int {
	if svcErr := GetServiceError(err); svcErr != nil {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
