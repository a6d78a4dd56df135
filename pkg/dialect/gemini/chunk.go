package gemini

import (
	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeChunk converts one streamed generateContent chunk to canonical form.
// Streamed chunks share the response shape; chunks carrying neither text,
// a finish reason, nor usage metadata decode to nil and must be skipped.
func DecodeChunk(resp *Response) *dialect.Chunk {
	out := &dialect.Chunk{}

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		out.Delta = joinParts(candidate.Content.Parts)
		if candidate.FinishReason != "" {
			out.FinishReason = CanonicalFinishReason(candidate.FinishReason)
		}
	}

	if resp.UsageMetadata != nil {
		out.Usage = &dialect.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	if out.Delta == "" && out.FinishReason == "" && out.Usage == nil {
		return nil
	}
	return out
}

// EncodeChunk converts a canonical chunk to the streamed generateContent
// shape.
func EncodeChunk(chunk *dialect.Chunk) *Response {
	out := &Response{
		Candidates: []Candidate{
			{
				Content: Content{
					Role:  RoleModel,
					Parts: []Part{{Text: chunk.Delta}},
				},
				FinishReason: FinishReasonFromCanonical(chunk.FinishReason),
				Index:        0,
			},
		},
	}

	if chunk.Usage != nil {
		out.UsageMetadata = &UsageMetadata{
			PromptTokenCount:     chunk.Usage.PromptTokens,
			CandidatesTokenCount: chunk.Usage.CompletionTokens,
			TotalTokenCount:      chunk.Usage.Total(),
		}
	}

	return out
}
