package core

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorType classifies proxy errors for HTTP mapping and client bodies.
type ErrorType string

const (
	// ErrorTypeConfiguration indicates a missing server-side provider key.
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeUpstream indicates a non-success initial response from a provider.
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeUpstreamStream indicates a network failure mid-stream.
	ErrorTypeUpstreamStream ErrorType = "upstream_stream_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx).
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401).
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeRateLimit indicates a rate limit rejection (429).
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeNotFound indicates a missing resource (404).
	ErrorTypeNotFound ErrorType = "not_found_error"
)

// ProxyError is the base error type for all chat-proxy errors.
type ProxyError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped error.
func (e *ProxyError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status code to surface for this error.
func (e *ProxyError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeUpstream, ErrorTypeUpstreamStream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON renders the OpenAI-style error body.
func (e *ProxyError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewConfigurationError reports a missing key for the named provider.
func NewConfigurationError(provider string) *ProxyError {
	return &ProxyError{
		Type:       ErrorTypeConfiguration,
		Message:    fmt.Sprintf("no API key configured for provider %q (caller or server)", provider),
		StatusCode: http.StatusInternalServerError,
		Provider:   provider,
	}
}

// NewUpstreamError wraps a non-success initial provider response.
// The body is kept verbatim for diagnostics; the client-facing message
// prefers the provider's error.message field when the body carries one.
func NewUpstreamError(provider string, statusCode int, body []byte) *ProxyError {
	message := string(body)
	if m := gjson.GetBytes(body, "error.message"); m.Exists() && m.String() != "" {
		message = m.String()
	}
	status := http.StatusBadGateway
	if statusCode >= 400 && statusCode < 500 {
		// Pass client errors (bad key, bad model) through unchanged.
		status = statusCode
	}
	return &ProxyError{
		Type:       ErrorTypeUpstream,
		Message:    fmt.Sprintf("%s request failed (status %d): %s", provider, statusCode, message),
		StatusCode: status,
		Provider:   provider,
	}
}

// NewUpstreamStreamError wraps a network failure while reading a provider stream.
func NewUpstreamStreamError(provider string, err error) *ProxyError {
	return &ProxyError{
		Type:       ErrorTypeUpstreamStream,
		Message:    "error reading " + provider + " stream: " + err.Error(),
		StatusCode: http.StatusBadGateway,
		Provider:   provider,
		Err:        err,
	}
}

// NewInvalidRequestError creates a client error (400).
func NewInvalidRequestError(message string, err error) *ProxyError {
	return &ProxyError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(message string) *ProxyError {
	return &ProxyError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewRateLimitError creates a rate limit rejection (429).
func NewRateLimitError(message string) *ProxyError {
	return &ProxyError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewNotFoundError creates a not found error (404).
func NewNotFoundError(message string) *ProxyError {
	return &ProxyError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}
