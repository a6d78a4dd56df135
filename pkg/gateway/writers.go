package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelmux/modelmux/pkg/dialect"
	"github.com/modelmux/modelmux/pkg/dialect/claude"
	"github.com/modelmux/modelmux/pkg/dialect/gemini"
	"github.com/modelmux/modelmux/pkg/dialect/openai"
)

// sseWriter frames Server-Sent Events onto the client connection, flushing
// after every event so chunks reach the client as they are produced.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher}
}

// start sets the streaming headers with the first event. Deferring them
// keeps a failure before the stream opens free to send a plain JSON error
// response.
func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
}

func (s *sseWriter) writeData(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) writeNamed(name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	s.start()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) writeRaw(line string) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, "%s\n\n", line); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// openaiStreamWriter renders canonical chunks as chat.completion.chunk
// events. The terminal sequence is one usage-bearing chunk followed by
// the data: [DONE] sentinel.
type openaiStreamWriter struct {
	sse   *sseWriter
	id    string
	model string
}

func newOpenAIStreamWriter(w http.ResponseWriter) *openaiStreamWriter {
	return &openaiStreamWriter{sse: newSSEWriter(w)}
}

func (o *openaiStreamWriter) WriteChunk(chunk *dialect.Chunk) error {
	o.id = "chatcmpl-" + chunk.ID
	o.model = chunk.Model

	// Usage-only chunks are held back; totals go out on the terminal
	// usage chunk.
	if chunk.Delta == "" && chunk.FinishReason == "" {
		return nil
	}
	return o.sse.writeData(openai.EncodeChunk(chunk, o.id, o.model))
}

func (o *openaiStreamWriter) WriteError(message string, statusCode int) error {
	return o.sse.writeData(openai.EncodeError(message, openaiErrorType(statusCode), ""))
}

func (o *openaiStreamWriter) Terminate(finishReason string, usage dialect.Usage) error {
	if usage != (dialect.Usage{}) {
		final := &openai.StreamChunk{
			ID:      o.id,
			Object:  "chat.completion.chunk",
			Model:   o.model,
			Choices: []openai.StreamChoice{},
			Usage: &openai.Usage{
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.Total(),
			},
		}
		if err := o.sse.writeData(final); err != nil {
			return err
		}
	}
	return o.sse.writeRaw("data: [DONE]")
}

// claudeStreamWriter renders canonical chunks as the named Claude event
// sequence: message_start, content_block_start, content_block_delta
// repeated, then content_block_stop, message_delta, and message_stop.
type claudeStreamWriter struct {
	sse    *sseWriter
	events *claude.EventStream
	opened bool
	prompt int
}

func newClaudeStreamWriter(w http.ResponseWriter) *claudeStreamWriter {
	return &claudeStreamWriter{sse: newSSEWriter(w)}
}

// open emits the stream preamble once. Prompt tokens arrive with the
// upstream's opening usage report when there is one.
func (c *claudeStreamWriter) open(id, model string) error {
	if c.opened {
		return nil
	}
	c.opened = true
	c.events = claude.NewEventStream("msg_"+id, model)
	for _, event := range c.events.Open(c.prompt) {
		if err := c.sse.writeNamed(event.Type, event.Data); err != nil {
			return err
		}
	}
	return nil
}

func (c *claudeStreamWriter) WriteChunk(chunk *dialect.Chunk) error {
	if !c.opened && chunk.Usage != nil {
		c.prompt = chunk.Usage.PromptTokens
	}
	if chunk.Delta == "" {
		return nil
	}
	if err := c.open(chunk.ID, chunk.Model); err != nil {
		return err
	}
	event := c.events.Delta(chunk.Delta)
	return c.sse.writeNamed(event.Type, event.Data)
}

func (c *claudeStreamWriter) WriteError(message string, statusCode int) error {
	return c.sse.writeNamed("error", claude.EncodeError(message, claudeErrorType(statusCode)))
}

func (c *claudeStreamWriter) Terminate(finishReason string, usage dialect.Usage) error {
	if !c.opened {
		c.prompt = usage.PromptTokens
		if err := c.open("", ""); err != nil {
			return err
		}
	}
	for _, event := range c.events.Close(finishReason, usage) {
		if err := c.sse.writeNamed(event.Type, event.Data); err != nil {
			return err
		}
	}
	return nil
}

// geminiStreamWriter renders canonical chunks as streamed generateContent
// payloads. Gemini streams have no sentinel; the terminal event is the
// final usage-bearing chunk and then the stream simply ends.
type geminiStreamWriter struct {
	sse *sseWriter
}

func newGeminiStreamWriter(w http.ResponseWriter) *geminiStreamWriter {
	return &geminiStreamWriter{sse: newSSEWriter(w)}
}

func (g *geminiStreamWriter) WriteChunk(chunk *dialect.Chunk) error {
	if chunk.Delta == "" && chunk.FinishReason == "" {
		return nil
	}
	return g.sse.writeData(gemini.EncodeChunk(chunk))
}

func (g *geminiStreamWriter) WriteError(message string, statusCode int) error {
	return g.sse.writeData(gemini.EncodeError(message, geminiStatus(statusCode), statusCode))
}

func (g *geminiStreamWriter) Terminate(finishReason string, usage dialect.Usage) error {
	if usage == (dialect.Usage{}) {
		return nil
	}
	final := &gemini.Response{
		UsageMetadata: &gemini.UsageMetadata{
			PromptTokenCount:     usage.PromptTokens,
			CandidatesTokenCount: usage.CompletionTokens,
			TotalTokenCount:      usage.Total(),
		},
	}
	return g.sse.writeData(final)
}
