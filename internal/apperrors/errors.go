// Package apperrors provides the typed errors handlers return, with HTTP status
// mapping and the JSON body sent to clients.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an error, used for status mapping and log levels.
type ErrorType string

const (
	// TypeValidation indicates invalid input (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeUnauthorized indicates a missing, unknown or expired session (HTTP 401)
	TypeUnauthorized ErrorType = "unauthorized"
	// TypeForbidden indicates the session may not act on the resource (HTTP 403)
	TypeForbidden ErrorType = "forbidden"
	// TypeNotFound indicates resource not found (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeProviderAuth indicates Discord refused or the callback was malformed.
	// Surfaced as a redirect to the dashboard, 400 elsewhere.
	TypeProviderAuth ErrorType = "provider_auth"
	// TypeTokenExchange indicates the code exchange or profile fetch failed.
	// Surfaced as a redirect to the dashboard, 502 elsewhere.
	TypeTokenExchange ErrorType = "token_exchange"
	// TypeUpstream indicates a Discord REST failure (HTTP 502, or the proxied 4xx)
	TypeUpstream ErrorType = "upstream"
	// TypeInternal indicates server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	// Status overrides the mapped status for upstream errors that are proxied.
	Status  int
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation, TypeProviderAuth:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeTokenExchange:
		return http.StatusBadGateway
	case TypeUpstream:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the error was caused by the caller rather than the server.
func (e *Error) IsClientError() bool {
	return e.HTTPStatus() < http.StatusInternalServerError
}

// Validation creates a new validation error (HTTP 400).
func Validation(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

// Unauthorized creates a new unauthorized error (HTTP 401).
func Unauthorized(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

// Forbidden creates a new forbidden error (HTTP 403).
func Forbidden(message string) *Error {
	return &Error{Type: TypeForbidden, Message: message}
}

// NotFound creates a new not-found error (HTTP 404).
func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

// ProviderAuth creates an error for a refused or malformed OAuth callback.
func ProviderAuth(message string) *Error {
	return &Error{Type: TypeProviderAuth, Message: message}
}

// TokenExchange creates an error for a failed code exchange or profile fetch.
func TokenExchange(message string, cause error) *Error {
	return &Error{Type: TypeTokenExchange, Message: message, Cause: cause}
}

// Upstream creates a Discord REST error. A 4xx status is proxied to the client.
func Upstream(message string, status int, cause error) *Error {
	return &Error{Type: TypeUpstream, Message: message, Status: status, Cause: cause}
}

// Internal creates a new internal error (HTTP 500).
func Internal(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse represents the JSON structure sent to clients.
type ErrorResponse struct {
	Error string    `json:"error"`
	Type  ErrorType `json:"type"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
// Context stays server-side; it only feeds logs.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Type:  e.Type,
	}
}

// As converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func As(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return Internal("internal server error", err)
}

// IsType reports whether err is a structured error of type t.
func IsType(err error, t ErrorType) bool {
	var structuredErr *Error
	return errors.As(err, &structuredErr) && structuredErr.Type == t
}
