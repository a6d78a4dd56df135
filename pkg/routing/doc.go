// Package routing resolves a client-requested model name to a concrete
// backend deployment.
//
// A Table is the immutable routing state built once from configuration: the
// set of backend accounts, their per-model deployment URLs and a derived
// model-to-accounts index. A Router owns the mutable round-robin counters
// and applies alias fallback; one Router serves one Table, so a
// configuration reload builds a fresh Router and swaps it in atomically.
package routing
