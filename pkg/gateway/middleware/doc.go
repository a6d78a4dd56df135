// Package middleware provides the HTTP middleware chain for the gateway:
// request IDs, structured request logging, panic recovery, and client
// API-key authentication against a configured allow-list.
//
// The chain is assembled outermost-first as recovery, request ID, logging,
// then per-route authentication. Authentication is per-route because a
// rejected request must be answered in the dialect of the endpoint it hit.
package middleware
