package middleware

import (
	"net/http"
	"strings"
)

// Authenticator checks client credentials against a configured allow-list.
// An empty allow-list disables authentication entirely.
type Authenticator struct {
	keys map[string]struct{}
}

// NewAuthenticator creates an authenticator over the given keys.
func NewAuthenticator(keys []string) *Authenticator {
	a := &Authenticator{keys: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		if key != "" {
			a.keys[key] = struct{}{}
		}
	}
	return a
}

// Enabled reports whether any keys are configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0
}

// Authorized reports whether the request carries an allowed key. Each
// dialect's native header is accepted on every route: a bearer token,
// x-api-key, or x-goog-api-key.
func (a *Authenticator) Authorized(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if _, allowed := a.keys[token]; allowed {
				return true
			}
		}
	}
	if key := r.Header.Get("X-Api-Key"); key != "" {
		if _, allowed := a.keys[key]; allowed {
			return true
		}
	}
	if key := r.Header.Get("X-Goog-Api-Key"); key != "" {
		if _, allowed := a.keys[key]; allowed {
			return true
		}
	}
	return false
}

// Middleware rejects unauthorized requests using onReject, which renders
// the 401 in the dialect of the wrapped route.
func (a *Authenticator) Middleware(onReject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Authorized(r) {
				onReject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
