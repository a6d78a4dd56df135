package gemini

import (
	"fmt"
	"log/slog"

	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeRequest converts a generateContent request to canonical form. The
// model name comes from the URL path, not the body, so the caller supplies
// it. A systemInstruction maps to the canonical system instruction.
func DecodeRequest(req *Request, model string) (*dialect.Request, error) {
	if model == "" {
		return nil, fmt.Errorf("missing model name")
	}
	if len(req.Contents) == 0 {
		return nil, fmt.Errorf("missing required field: contents")
	}

	out := &dialect.Request{Model: model}

	if req.SystemInstruction != nil {
		out.System = joinParts(req.SystemInstruction.Parts)
	}

	for _, content := range req.Contents {
		role := dialect.RoleUser
		if content.Role == RoleModel {
			role = dialect.RoleAssistant
		}
		out.Turns = append(out.Turns, dialect.Turn{
			Role:    role,
			Content: joinParts(content.Parts),
		})
	}

	if cfg := req.GenerationConfig; cfg != nil {
		if cfg.MaxOutputTokens < 0 {
			slog.Warn("ignoring invalid maxOutputTokens", "value", cfg.MaxOutputTokens)
		} else {
			out.MaxTokens = cfg.MaxOutputTokens
		}
		out.Temperature = cfg.Temperature
		out.TopP = cfg.TopP
		out.Stop = cfg.StopSequences
	}

	return out, nil
}

// EncodeRequest converts a canonical request to the generateContent shape.
// The system instruction is prepended to the first user turn's text; tool
// declarations are dropped because the subset has no tools concept.
func EncodeRequest(req *dialect.Request) *Request {
	out := &Request{}

	system := req.System
	for _, turn := range req.Turns {
		role := RoleUser
		if turn.Role == dialect.RoleAssistant {
			role = RoleModel
		}
		text := turn.Content
		if system != "" && role == RoleUser {
			text = system + "\n\n" + text
			system = ""
		}
		out.Contents = append(out.Contents, Content{
			Role:  role,
			Parts: []Part{{Text: text}},
		})
	}
	// No user turn to attach the system text to.
	if system != "" {
		out.Contents = append([]Content{{
			Role:  RoleUser,
			Parts: []Part{{Text: system}},
		}}, out.Contents...)
	}

	if req.MaxTokens > 0 || req.Temperature != nil || req.TopP != nil || len(req.Stop) > 0 {
		out.GenerationConfig = &GenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			StopSequences:   req.Stop,
		}
	}

	return out
}

// joinParts concatenates the text of all parts in order.
func joinParts(parts []Part) string {
	var text string
	for _, part := range parts {
		text += part.Text
	}
	return text
}
