// Package gateway is the HTTP surface of the model multiplexer. It exposes
// the three client-facing chat dialects (OpenAI chat completions, Claude
// messages, Gemini generateContent), resolves each request against the
// routing table, drives the upstream call through the transcoder, and
// renders responses and errors back in the dialect the client spoke.
package gateway
