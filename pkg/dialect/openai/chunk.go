package openai

import (
	"time"

	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeChunk converts one OpenAI stream chunk to canonical form.
// Returns nil for events carrying neither a delta, a finish reason, nor
// usage metadata; callers must skip a nil result.
func DecodeChunk(chunk *StreamChunk) *dialect.Chunk {
	out := &dialect.Chunk{
		ID:    chunk.ID,
		Model: chunk.Model,
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		out.Delta = choice.Delta.Content
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			out.FinishReason = CanonicalFinishReason(*choice.FinishReason)
		}
	}

	// OpenAI-shaped upstreams report usage on the final chunk.
	if chunk.Usage != nil {
		out.Usage = &dialect.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
		}
	}

	if out.Delta == "" && out.FinishReason == "" && out.Usage == nil {
		return nil
	}
	return out
}

// EncodeChunk converts a canonical chunk to an OpenAI chat.completion.chunk.
// The stream identifier is generated once per stream and reused on every
// chunk.
func EncodeChunk(chunk *dialect.Chunk, streamID, model string) *StreamChunk {
	out := &StreamChunk{
		ID:      streamID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []StreamChoice{
			{
				Index: 0,
				Delta: Delta{Content: chunk.Delta},
			},
		},
	}

	if chunk.FinishReason != "" {
		reason := FinishReasonFromCanonical(chunk.FinishReason)
		out.Choices[0].FinishReason = &reason
	}
	if chunk.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.Total(),
		}
	}

	return out
}
