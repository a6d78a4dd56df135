package transcode

import (
	"fmt"
	"time"
)

// UpstreamError represents a general upstream failure.
// It includes the account name, HTTP status code, and response body.
type UpstreamError struct {
	// Account is the name of the account the request was sent to
	Account string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %q error (status %d): %s", e.Account, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %q error: %s", e.Account, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure.
// This occurs when the upstream still rejects the bearer token (HTTP 401
// or 403) after the cached credential was invalidated and re-exchanged.
type AuthError struct {
	// Account is the name of the account that rejected the token
	Account string

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream %q authentication failed: %s", e.Account, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
// It includes the retry-after duration if provided by the upstream.
type RateLimitError struct {
	// Account is the name of the account that rate limited the request
	Account string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream %q rate limit exceeded (retry after %s): %s",
			e.Account, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("upstream %q rate limit exceeded: %s", e.Account, e.Message)
}

// TimeoutError represents a request timeout.
// This occurs when a request exceeds the configured timeout duration.
type TimeoutError struct {
	// Account is the name of the account where the timeout occurred
	Account string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %q request timeout after %s", e.Account, e.Timeout)
}

// ParseError represents a response parsing failure.
// This occurs when the upstream returns a malformed response body or a
// malformed stream event.
type ParseError struct {
	// Account is the name of the account that returned the malformed response
	Account string

	// RawResponse is the raw response fragment that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream %q response parse error: %v", e.Account, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StreamError represents an error that occurred after streaming began.
// The transcoder reports it to the caller once the in-band error event and
// the terminal sentinel have been written.
type StreamError struct {
	// Account is the name of the account where the error occurred
	Account string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %q stream error: %s: %v", e.Account, e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream %q stream error: %s", e.Account, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
