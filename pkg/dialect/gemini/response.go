package gemini

import (
	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeResponse converts a generateContent response to canonical form.
// Returns nil if no candidate with a text part can be located.
func DecodeResponse(resp *Response) *dialect.Response {
	if len(resp.Candidates) == 0 {
		return nil
	}

	candidate := resp.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return nil
	}

	out := &dialect.Response{
		Text:         joinParts(candidate.Content.Parts),
		FinishReason: CanonicalFinishReason(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = dialect.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out
}

// EncodeResponse converts a canonical response to the generateContent shape.
func EncodeResponse(resp *dialect.Response) *Response {
	return &Response{
		Candidates: []Candidate{
			{
				Content: Content{
					Role:  RoleModel,
					Parts: []Part{{Text: resp.Text}},
				},
				FinishReason: FinishReasonFromCanonical(resp.FinishReason),
				Index:        0,
			},
		},
		UsageMetadata: &UsageMetadata{
			PromptTokenCount:     resp.Usage.PromptTokens,
			CandidatesTokenCount: resp.Usage.CompletionTokens,
			TotalTokenCount:      resp.Usage.Total(),
		},
	}
}

// EncodeError renders a message as a Gemini-shaped error payload.
func EncodeError(message, status string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Status:  status,
		},
	}
}

// CanonicalFinishReason maps a Gemini finishReason to the canonical
// vocabulary. OTHER and unknown values map to FinishOther (rendered as stop
// by the OpenAI dialect and stop_sequence by the Claude dialect) so the
// mapping is total.
func CanonicalFinishReason(reason string) string {
	switch reason {
	case FinishStop:
		return dialect.FinishStop
	case FinishMaxTokens:
		return dialect.FinishLength
	case FinishSafety, FinishRecitation:
		return dialect.FinishContentFilter
	case "":
		return ""
	default:
		return dialect.FinishOther
	}
}

// FinishReasonFromCanonical maps a canonical finish reason to the Gemini
// vocabulary. Unknown values default to STOP so the mapping is total.
func FinishReasonFromCanonical(reason string) string {
	switch reason {
	case dialect.FinishStop, dialect.FinishToolCalls:
		return FinishStop
	case dialect.FinishLength:
		return FinishMaxTokens
	case dialect.FinishContentFilter:
		return FinishSafety
	case dialect.FinishOther:
		return FinishOther
	case "":
		return ""
	default:
		return FinishStop
	}
}
