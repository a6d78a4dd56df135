package claude

import (
	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeResponse converts a legacy Claude response to canonical form.
// Returns nil if no text block can be located.
func DecodeResponse(resp *Response) *dialect.Response {
	var text string
	found := false
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	return &dialect.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         text,
		FinishReason: CanonicalStopReason(resp.StopReason),
		Usage: dialect.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}
}

// DecodeConverseResponse converts a modern converse response to canonical
// form. Returns nil if the output message carries no text block.
func DecodeConverseResponse(resp *ConverseResponse) *dialect.Response {
	blocks := resp.Output.Message.Content
	if len(blocks) == 0 {
		return nil
	}

	return &dialect.Response{
		Text:         blocks[0].Text,
		FinishReason: CanonicalStopReason(resp.StopReason),
		Usage: dialect.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}
}

// EncodeResponse converts a canonical response to the client-facing Claude
// messages shape.
func EncodeResponse(resp *dialect.Response, id string) *Response {
	if id == "" {
		id = "msg_" + resp.ID
	}
	return &Response{
		ID:         id,
		Type:       "message",
		Role:       dialect.RoleAssistant,
		Content:    []ContentBlock{{Type: "text", Text: resp.Text}},
		Model:      resp.Model,
		StopReason: StopReasonFromCanonical(resp.FinishReason),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

// EncodeError renders a message as a Claude-shaped error payload.
func EncodeError(message, errType string) *ErrorResponse {
	return &ErrorResponse{
		Type: "error",
		Error: ErrorDetail{
			Type:    errType,
			Message: message,
		},
	}
}

// CanonicalStopReason maps a Claude stop_reason to the canonical vocabulary.
// stop_sequence and unknown values map to FinishOther so the mapping is
// total.
func CanonicalStopReason(reason string) string {
	switch reason {
	case StopEndTurn:
		return dialect.FinishStop
	case StopMaxTokens:
		return dialect.FinishLength
	case StopToolUse:
		return dialect.FinishToolCalls
	case "":
		return ""
	default:
		// stop_sequence included: it has no OpenAI-native expression.
		return dialect.FinishOther
	}
}

// StopReasonFromCanonical maps a canonical finish reason to the Claude
// stop_reason vocabulary. FinishOther and content_filter both render as
// stop_sequence; unknown values default to end_turn so the mapping is total.
func StopReasonFromCanonical(reason string) string {
	switch reason {
	case dialect.FinishStop:
		return StopEndTurn
	case dialect.FinishLength:
		return StopMaxTokens
	case dialect.FinishContentFilter, dialect.FinishOther:
		return StopSequence
	case dialect.FinishToolCalls:
		return StopToolUse
	case "":
		return ""
	default:
		return StopEndTurn
	}
}
