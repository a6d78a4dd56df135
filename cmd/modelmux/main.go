// Modelmux is a multi-dialect gateway for LLM inference traffic.
//
// It accepts requests in the OpenAI chat-completions, Claude messages, and
// Gemini generateContent dialects, routes each request to a configured
// backend deployment, and translates between the client's dialect and the
// deployment's wire protocol, for both buffered and streamed responses.
//
// Usage:
//
//	# Start the gateway with default configuration
//	modelmux run
//
//	# Start with a custom configuration file
//	modelmux run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	modelmux validate --config /path/to/config.yaml
//
//	# Summarize recorded token usage
//	modelmux usage --since 24h
//
//	# Show version information
//	modelmux version
package main

func main() {
	Execute()
}
