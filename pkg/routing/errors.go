package routing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelNotAvailable is returned when no account serves the requested
// model after alias fallback. Check with errors.Is().
var ErrModelNotAvailable = errors.New("model not available")

// ModelNotAvailableError reports a failed resolution, naming both the
// original model and every fallback that was attempted.
type ModelNotAvailableError struct {
	// Model is the client-requested model name.
	Model string

	// Attempted contains the fallback names that were tried, in order.
	Attempted []string
}

// Error implements the error interface.
func (e *ModelNotAvailableError) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("model %q is not available", e.Model)
	}
	return fmt.Sprintf("model %q is not available (tried fallbacks: %s)",
		e.Model, strings.Join(e.Attempted, ", "))
}

// Is implements error matching for errors.Is().
func (e *ModelNotAvailableError) Is(target error) bool {
	return target == ErrModelNotAvailable
}
