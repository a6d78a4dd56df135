package claude

// Legacy messages API wire types.

// Request represents a Claude messages request.
type Request struct {
	Model         string      `json:"model"`
	Messages      []Message   `json:"messages"`
	System        interface{} `json:"system,omitempty"` // string or []ContentBlock
	MaxTokens     int         `json:"max_tokens"`
	Temperature   *float64    `json:"temperature,omitempty"`
	TopP          *float64    `json:"top_p,omitempty"`
	StopSequences []string    `json:"stop_sequences,omitempty"`
	Stream        bool        `json:"stream,omitempty"`
	Tools         []Tool      `json:"tools,omitempty"`
}

// Message represents a message in Claude format.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []ContentBlock
}

// ContentBlock represents a content block in Claude format.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Tool represents a tool definition in Claude format.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Response represents a Claude messages response.
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model,omitempty"`
	StopReason   string         `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// Usage represents token usage in Claude format.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent represents one event in Claude's named SSE stream. The Type
// field is the discriminator; the remaining fields are populated per type.
type StreamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *Response `json:"message,omitempty"`

	// content_block_start / content_block_delta / content_block_stop
	Index        int           `json:"index"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *EventDelta   `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`
}

// EventDelta carries both content_block_delta text and message_delta
// stop-reason fields; only one set is populated per event.
type EventDelta struct {
	Type         string `json:"type,omitempty"`
	Text         string `json:"text,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

// ErrorResponse is the Claude error envelope.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error fields inside the envelope.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Modern converse wire types.

// ConverseRequest is the modern request encoding for Claude deployments.
// Content is always block-form and parameters are camelCase.
type ConverseRequest struct {
	Messages      []ConverseMessage `json:"messages"`
	MaxTokens     int               `json:"maxTokens,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	TopP          *float64          `json:"topP,omitempty"`
	StopSequences []string          `json:"stopSequences,omitempty"`
	Tools         []ConverseTool    `json:"tools,omitempty"`
}

// ConverseMessage is a turn in converse form.
type ConverseMessage struct {
	Role    string      `json:"role"`
	Content []TextBlock `json:"content"`
}

// TextBlock is the block content element of the converse shape.
type TextBlock struct {
	Text string `json:"text"`
}

// ConverseTool is a tool declaration in converse form.
type ConverseTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ConverseResponse is the modern non-streaming response shape.
type ConverseResponse struct {
	Output     ConverseOutput `json:"output"`
	StopReason string         `json:"stopReason"`
	Usage      ConverseUsage  `json:"usage"`
}

// ConverseOutput wraps the assistant message.
type ConverseOutput struct {
	Message ConverseMessage `json:"message"`
}

// ConverseUsage represents token usage in converse form.
type ConverseUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ConverseStreamEvent is one modern streaming event. The first populated
// field is the discriminator.
type ConverseStreamEvent struct {
	MessageStart      *ConverseMessageStart `json:"messageStart,omitempty"`
	ContentBlockDelta *ConverseBlockDelta   `json:"contentBlockDelta,omitempty"`
	MessageStop       *ConverseMessageStop  `json:"messageStop,omitempty"`
	Metadata          *ConverseMetadata     `json:"metadata,omitempty"`
}

// ConverseMessageStart opens a streamed message.
type ConverseMessageStart struct {
	Role string `json:"role"`
}

// ConverseBlockDelta carries incremental text.
type ConverseBlockDelta struct {
	Delta TextBlock `json:"delta"`
}

// ConverseMessageStop carries the terminal stop reason.
type ConverseMessageStop struct {
	StopReason string `json:"stopReason"`
}

// ConverseMetadata carries the usage sub-object.
type ConverseMetadata struct {
	Usage ConverseUsage `json:"usage"`
}

// Claude stop reasons.
const (
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopSequence  = "stop_sequence"
	StopToolUse   = "tool_use"
)
