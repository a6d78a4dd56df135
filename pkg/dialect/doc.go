// Package dialect defines the canonical, wire-neutral representation of one
// inference exchange (request, response, stream chunk) that every supported
// protocol converts through.
//
// Each subpackage (openai, claude, gemini) provides pure encode/decode
// functions between its own wire shapes and the canonical types. Converting
// between any two dialects is decode-then-encode through this package; no
// dialect depends on another dialect.
package dialect
