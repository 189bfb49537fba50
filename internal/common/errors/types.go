// Package errors defines the structured error taxonomy for the cache engine.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeNotFound means a key was absent or expired at every targeted tier
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeValidation represents malformed input: bad pattern, oversize entry, bad config payload
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeBackendUnavailable means a tier timed out or refused connection
	ErrTypeBackendUnavailable ErrorType = "backend_unavailable"
	// ErrTypeSerialization means a payload was unreadable in its claimed format
	ErrTypeSerialization ErrorType = "serialization"
	// ErrTypeConfig represents a rejected configuration update
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authentication errors
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// CacheError represents a structured cache engine error. Every error carries
// a stable code and, once it crosses the HTTP boundary, a request id for
// audit correlation.
type CacheError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *CacheError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *CacheError) WithCode(code string) *CacheError {
	e.Code = code
	return e
}

// WithRequestID stamps the request id used for audit correlation
func (e *CacheError) WithRequestID(id string) *CacheError {
	e.RequestID = id
	return e
}

// NotFound creates a new not found error for a cache key
func NotFound(key string) *CacheError {
	return &CacheError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("key %q not found", key),
		Code:    "key_not_found",
	}
}

// Validation creates a new validation error
func Validation(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeValidation,
		Message: msg,
		Code:    "invalid_input",
	}
}

// EntryTooLarge creates the validation error for an oversize write
func EntryTooLarge(sizeBytes, maxBytes int64) *CacheError {
	return &CacheError{
		Type:    ErrTypeValidation,
		Message: fmt.Sprintf("entry size %d bytes exceeds limit of %d bytes", sizeBytes, maxBytes),
		Code:    "entry_too_large",
	}
}

// BackendUnavailable creates an error for an unreachable or timed-out tier
func BackendUnavailable(tier string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeBackendUnavailable,
		Message: fmt.Sprintf("cache tier %s unavailable", tier),
		Code:    "backend_unavailable",
		Cause:   cause,
	}
}

// Serialization creates an error for an unreadable payload
func Serialization(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeSerialization,
		Message: msg,
		Code:    "serialization_failed",
		Cause:   cause,
	}
}

// Config creates a new configuration error
func Config(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeConfig,
		Message: msg,
		Code:    "invalid_config",
	}
}

// Auth creates a new authentication error
func Auth(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeAuth,
		Message: msg,
		Code:    "unauthorized",
	}
}

// Timeout creates a new timeout error
func Timeout(operation string) *CacheError {
	return &CacheError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
		Code:    "operation_timeout",
	}
}

// Internal creates a new internal error
func Internal(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeInternal,
		Message: msg,
		Code:    "internal_error",
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return false
	}

	return cacheErr.Type == errType
}

// GetType returns the error type if it's a CacheError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return ErrTypeInternal
	}

	return cacheErr.Type
}
