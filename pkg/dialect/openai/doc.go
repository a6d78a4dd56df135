// Package openai converts between the OpenAI Chat Completions wire format
// and the canonical dialect types.
package openai
