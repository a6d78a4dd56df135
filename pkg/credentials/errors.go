package credentials

import (
	"errors"
	"fmt"
)

// ErrEmptyToken is returned when the token endpoint answered 2xx but the
// response carried no access token. Check with errors.Is().
var ErrEmptyToken = errors.New("token endpoint returned an empty token")

// ExchangeError reports a failed client-credentials exchange: a network
// failure, a timeout, or a non-2xx token-endpoint response.
type ExchangeError struct {
	// Account is the backend account whose exchange failed.
	Account string

	// Cause is the underlying error from the OAuth2 client.
	Cause error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange for account %q failed: %v", e.Account, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// EmptyTokenError reports a 2xx token response with no usable token.
type EmptyTokenError struct {
	// Account is the backend account whose response was empty.
	Account string
}

// Error implements the error interface.
func (e *EmptyTokenError) Error() string {
	return fmt.Sprintf("token endpoint for account %q returned an empty token", e.Account)
}

// Is implements error matching for errors.Is().
func (e *EmptyTokenError) Is(target error) bool {
	return target == ErrEmptyToken
}
