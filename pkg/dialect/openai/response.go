package openai

import (
	"time"

	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeResponse converts an OpenAI response to canonical form.
// Returns nil if no choice with text content can be located.
func DecodeResponse(resp *Response) *dialect.Response {
	if len(resp.Choices) == 0 {
		return nil
	}

	choice := resp.Choices[0]
	return &dialect.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         choice.Message.Content,
		FinishReason: CanonicalFinishReason(choice.FinishReason),
		Usage: dialect.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
}

// EncodeResponse converts a canonical response to OpenAI wire format.
func EncodeResponse(resp *dialect.Response, id string) *Response {
	if id == "" {
		id = "chatcmpl-" + resp.ID
	}
	return &Response{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: ResponseMessage{
					Role:    dialect.RoleAssistant,
					Content: resp.Text,
				},
				FinishReason: FinishReasonFromCanonical(resp.FinishReason),
			},
		},
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.Total(),
		},
	}
}

// EncodeError renders a message as an OpenAI-shaped error payload. Used when
// a conversion cannot locate the expected fields, so the client still
// receives a well-formed body in the dialect it asked for.
func EncodeError(message, errType, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    code,
		},
	}
}

// CanonicalFinishReason maps an OpenAI finish_reason to the canonical
// vocabulary. The canonical vocabulary extends the OpenAI one; unknown
// values default to stop so the mapping is total.
func CanonicalFinishReason(reason string) string {
	switch reason {
	case dialect.FinishStop, dialect.FinishLength, dialect.FinishContentFilter, dialect.FinishToolCalls:
		return reason
	case "":
		return ""
	default:
		return dialect.FinishStop
	}
}

// FinishReasonFromCanonical maps a canonical finish reason to the OpenAI
// vocabulary. FinishOther and unknown values render as stop so the mapping
// is total.
func FinishReasonFromCanonical(reason string) string {
	switch reason {
	case dialect.FinishStop, dialect.FinishLength, dialect.FinishContentFilter, dialect.FinishToolCalls:
		return reason
	case "":
		return ""
	default:
		return dialect.FinishStop
	}
}
