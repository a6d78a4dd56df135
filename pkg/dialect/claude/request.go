package claude

import (
	"fmt"
	"log/slog"

	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeRequest converts a Claude messages request to canonical form.
// The top-level system field and any leading system turn both map to the
// canonical system instruction; the top-level field wins when both appear.
func DecodeRequest(req *Request) (*dialect.Request, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("missing required field: model")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("missing required field: messages")
	}

	out := &dialect.Request{
		Model:       req.Model,
		System:      flattenContent(req.System),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
	}

	if req.MaxTokens < 0 {
		slog.Warn("ignoring invalid max_tokens", "value", req.MaxTokens)
	} else {
		out.MaxTokens = req.MaxTokens
	}

	for i, msg := range req.Messages {
		content := flattenContent(msg.Content)
		if i == 0 && msg.Role == dialect.RoleSystem && out.System == "" {
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
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.InputSchema,
		})
	}

	return out, nil
}

// EncodeRequestLegacy converts a canonical request to the legacy Claude
// messages shape: system as a top-level string, bare string content.
func EncodeRequestLegacy(req *dialect.Request) *Request {
	out := &Request{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        req.Stream,
	}

	// max_tokens is required by the messages API.
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	if req.System != "" {
		out.System = req.System
	}
	for _, turn := range req.Turns {
		out.Messages = append(out.Messages, Message{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	return out
}

// EncodeRequestConverse converts a canonical request to the modern converse
// shape: block content, camelCase parameters, and the system instruction
// re-expressed as a synthetic leading user turn.
func EncodeRequestConverse(req *dialect.Request) *ConverseRequest {
	out := &ConverseRequest{
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	if req.System != "" {
		out.Messages = append(out.Messages, ConverseMessage{
			Role:    dialect.RoleUser,
			Content: []TextBlock{{Text: req.System}},
		})
	}
	for _, turn := range req.Turns {
		out.Messages = append(out.Messages, ConverseMessage{
			Role:    turn.Role,
			Content: []TextBlock{{Text: turn.Content}},
		})
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, ConverseTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	return out
}

// defaultMaxTokens is applied when the caller left max_tokens unset; the
// Claude surfaces reject requests without it.
const defaultMaxTokens = 4096

// flattenContent normalizes Claude message content to a string. Content may
// be a bare string or a list of typed blocks; text blocks contribute in
// order, other block types are ignored.
func flattenContent(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		var text string
		for _, block := range v {
			blockMap, ok := block.(map[string]interface{})
			if !ok {
				continue
			}
			if t, ok := blockMap["type"].(string); ok && t != "text" {
				continue
			}
			if t, ok := blockMap["text"].(string); ok {
				text += t
			}
		}
		return text
	default:
		return fmt.Sprintf("%v", v)
	}
}
