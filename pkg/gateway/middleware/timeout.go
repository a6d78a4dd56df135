package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout places a deadline on each request's context. Handlers observe
// cancellation through the context; the upstream client maps a deadline
// that fires mid-call to a 504. The middleware itself never writes to the
// response — a second writer would race active SSE streams.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
