package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelmux/modelmux/pkg/credentials"
	"github.com/modelmux/modelmux/pkg/dialect/claude"
	"github.com/modelmux/modelmux/pkg/dialect/gemini"
	"github.com/modelmux/modelmux/pkg/dialect/openai"
	"github.com/modelmux/modelmux/pkg/routing"
	"github.com/modelmux/modelmux/pkg/transcode"
)

// mapError converts an internal error into an HTTP status, a client-safe
// message, and a retry-after hint (zero when absent).
//
// Status assignment: 404 for unresolvable models, 429 for upstream rate
// limits, 504 for upstream timeouts, 503 when the backend or its token
// endpoint is unreachable, 502 for every other upstream failure including
// a backend that rejects our refreshed token, and 500 as the fallback.
func mapError(err error) (status int, message string, retryAfter time.Duration) {
	var notAvailable *routing.ModelNotAvailableError
	if errors.As(err, &notAvailable) {
		return http.StatusNotFound, notAvailable.Error(), 0
	}

	var rateLimit *transcode.RateLimitError
	if errors.As(err, &rateLimit) {
		return http.StatusTooManyRequests, rateLimit.Error(), rateLimit.RetryAfter
	}

	var timeout *transcode.TimeoutError
	if errors.As(err, &timeout) {
		return http.StatusGatewayTimeout, timeout.Error(), 0
	}

	var authErr *transcode.AuthError
	if errors.As(err, &authErr) {
		return http.StatusBadGateway,
			fmt.Sprintf("backend account %q rejected authentication after token refresh", authErr.Account), 0
	}

	var exchange *credentials.ExchangeError
	if errors.As(err, &exchange) {
		return http.StatusServiceUnavailable,
			fmt.Sprintf("token exchange for account %q failed", exchange.Account), 0
	}

	var emptyToken *credentials.EmptyTokenError
	if errors.As(err, &emptyToken) {
		return http.StatusBadGateway, emptyToken.Error(), 0
	}

	var parse *transcode.ParseError
	if errors.As(err, &parse) {
		return http.StatusBadGateway, parse.Error(), 0
	}

	var upstream *transcode.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.StatusCode == 0 {
			// Network-level failure, the backend never answered.
			return http.StatusServiceUnavailable, upstream.Error(), 0
		}
		return http.StatusBadGateway, upstream.Error(), 0
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "upstream call timed out", 0
	}

	return http.StatusInternalServerError, "internal error", 0
}

// setRetryAfter propagates the upstream's retry hint.
func setRetryAfter(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	}
}

// openaiErrorType maps an HTTP status to the OpenAI error type vocabulary.
func openaiErrorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status >= 400 && status < 500:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

// claudeErrorType maps an HTTP status to the Claude error type vocabulary.
func claudeErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

// geminiStatus maps an HTTP status to the Gemini status vocabulary.
func geminiStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// writeOpenAIError writes an OpenAI-shaped error body with the given status.
func writeOpenAIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(openai.EncodeError(message, openaiErrorType(status), ""))
}

// writeClaudeError writes a Claude-shaped error body with the given status.
func writeClaudeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(claude.EncodeError(message, claudeErrorType(status)))
}

// writeGeminiError writes a Gemini-shaped error body with the given status.
func writeGeminiError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(gemini.EncodeError(message, geminiStatus(status), status))
}
