package claude

import (
	"github.com/modelmux/modelmux/pkg/dialect"
)

// DecodeChunk converts one legacy Claude stream event to canonical form.
// Events that carry no renderable delta, no finish signal and no usage
// (content_block_start, content_block_stop, ping, message_stop) decode to
// nil and must be skipped.
func DecodeChunk(event *StreamEvent) *dialect.Chunk {
	switch event.Type {
	case "message_start":
		if event.Message == nil || event.Message.Usage.InputTokens == 0 {
			return nil
		}
		// The opening event reports prompt tokens.
		return &dialect.Chunk{
			ID:    event.Message.ID,
			Model: event.Message.Model,
			Usage: &dialect.Usage{PromptTokens: event.Message.Usage.InputTokens},
		}

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Text == "" {
			return nil
		}
		return &dialect.Chunk{Delta: event.Delta.Text}

	case "message_delta":
		chunk := &dialect.Chunk{}
		if event.Delta != nil {
			chunk.FinishReason = CanonicalStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &dialect.Usage{
				PromptTokens:     event.Usage.InputTokens,
				CompletionTokens: event.Usage.OutputTokens,
			}
		}
		if chunk.FinishReason == "" && chunk.Usage == nil {
			return nil
		}
		return chunk

	default:
		// content_block_start, content_block_stop, message_stop, ping and
		// anything unrecognized carry nothing to forward.
		return nil
	}
}

// DecodeConverseChunk converts one modern converse stream event to canonical
// form. The discriminator is the first populated object key.
func DecodeConverseChunk(event *ConverseStreamEvent) *dialect.Chunk {
	switch {
	case event.ContentBlockDelta != nil:
		if event.ContentBlockDelta.Delta.Text == "" {
			return nil
		}
		return &dialect.Chunk{Delta: event.ContentBlockDelta.Delta.Text}

	case event.MessageStop != nil:
		return &dialect.Chunk{
			FinishReason: CanonicalStopReason(event.MessageStop.StopReason),
		}

	case event.Metadata != nil:
		return &dialect.Chunk{
			Usage: &dialect.Usage{
				PromptTokens:     event.Metadata.Usage.InputTokens,
				CompletionTokens: event.Metadata.Usage.OutputTokens,
			},
		}

	default:
		// messageStart and unrecognized events carry nothing to forward.
		return nil
	}
}

// Event is one client-facing SSE event: "event: <Type>\ndata: <Data>\n\n".
type Event struct {
	Type string
	Data interface{}
}

// EventStream builds the named SSE event sequence the Claude dialect
// requires. One instance serves one stream; the identifier is fixed at
// construction and reused on every event.
type EventStream struct {
	id    string
	model string
}

// NewEventStream creates an event builder for one streamed message.
func NewEventStream(id, model string) *EventStream {
	return &EventStream{id: id, model: model}
}

// Open returns the events that begin a streamed message.
func (s *EventStream) Open(promptTokens int) []Event {
	return []Event{
		{
			Type: "message_start",
			Data: map[string]interface{}{
				"type": "message_start",
				"message": &Response{
					ID:      s.id,
					Type:    "message",
					Role:    dialect.RoleAssistant,
					Content: []ContentBlock{},
					Model:   s.model,
					Usage:   Usage{InputTokens: promptTokens},
				},
			},
		},
		{
			Type: "content_block_start",
			Data: map[string]interface{}{
				"type":          "content_block_start",
				"index":         0,
				"content_block": ContentBlock{Type: "text"},
			},
		},
	}
}

// Delta returns the event for one incremental text fragment.
func (s *EventStream) Delta(text string) Event {
	return Event{
		Type: "content_block_delta",
		Data: map[string]interface{}{
			"type":  "content_block_delta",
			"index": 0,
			"delta": EventDelta{Type: "text_delta", Text: text},
		},
	}
}

// Close returns the events that terminate a streamed message. The finish
// reason is canonical and mapped to the Claude vocabulary here.
func (s *EventStream) Close(finishReason string, usage dialect.Usage) []Event {
	return []Event{
		{
			Type: "content_block_stop",
			Data: map[string]interface{}{
				"type":  "content_block_stop",
				"index": 0,
			},
		},
		{
			Type: "message_delta",
			Data: map[string]interface{}{
				"type": "message_delta",
				"delta": EventDelta{
					StopReason: StopReasonFromCanonical(finishReason),
				},
				"usage": Usage{
					InputTokens:  usage.PromptTokens,
					OutputTokens: usage.CompletionTokens,
				},
			},
		},
		{
			Type: "message_stop",
			Data: map[string]interface{}{"type": "message_stop"},
		},
	}
}
