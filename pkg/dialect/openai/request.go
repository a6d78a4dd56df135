package openai

import (
	"fmt"
	"log/slog"

	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeRequest converts an OpenAI chat completion request to canonical form.
// A leading system message is extracted into the canonical system instruction.
func DecodeRequest(req *Request) (*dialect.Request, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("missing required field: model")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("missing required field: messages")
	}

	out := &dialect.Request{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}

	if req.MaxTokens != nil {
		if *req.MaxTokens <= 0 {
			slog.Warn("ignoring invalid max_tokens", "value", *req.MaxTokens)
		} else {
			out.MaxTokens = *req.MaxTokens
		}
	}

	for i, msg := range req.Messages {
		content := flattenContent(msg.Content)
		if i == 0 && msg.Role == dialect.RoleSystem {
			out.System = content
			continue
		}
		out.Turns = append(out.Turns, dialect.Turn{
			Role:    msg.Role,
			Content: content,
		})
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, dialect.Tool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}

	return out, nil
}

// EncodeRequest converts a canonical request to OpenAI wire format.
// The system instruction becomes a leading system message.
func EncodeRequest(req *dialect.Request) *Request {
	out := &Request{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}

	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		out.MaxTokens = &maxTokens
	}

	if req.System != "" {
		out.Messages = append(out.Messages, Message{
			Role:    dialect.RoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.Turns {
		out.Messages = append(out.Messages, Message{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Type: "function",
			Function: FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return out
}

// flattenContent normalizes OpenAI message content to a string.
// Multimodal content arrays contribute their text parts only.
func flattenContent(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var text string
		for _, part := range v {
			partMap, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if partMap["type"] != "text" {
				continue
			}
			if t, ok := partMap["text"].(string); ok {
				if text != "" {
					text += " "
				}
				text += t
			}
		}
		return text
	default:
		return fmt.Sprintf("%v", v)
	}
}
