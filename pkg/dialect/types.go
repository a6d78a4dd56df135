package dialect

// Turn is a single conversation turn in canonical form.
type Turn struct {
	// Role identifies the speaker (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the turn's text content
	Content string `json:"content"`
}

// Tool is a canonical tool/function declaration.
type Tool struct {
	// Name is the function name
	Name string `json:"name"`

	// Description explains what the function does
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Request is the canonical representation of one inference request.
// Dialect decoders produce it; dialect encoders consume it.
type Request struct {
	// Model is the client-requested model identifier
	Model string `json:"model"`

	// System is the extracted system instruction, empty if none
	System string `json:"system,omitempty"`

	// Turns is the ordered conversation, excluding the system instruction
	Turns []Turn `json:"turns"`

	// MaxTokens limits generation length; 0 means unset
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness; nil means unset
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling; nil means unset
	TopP *float64 `json:"top_p,omitempty"`

	// Stop sequences that halt generation
	Stop []string `json:"stop,omitempty"`

	// Stream indicates the client asked for a streamed response
	Stream bool `json:"stream,omitempty"`

	// Tools the model may call; dropped when the target dialect has no
	// tools concept
	Tools []Tool `json:"tools,omitempty"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of generated tokens
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates non-zero counts from another usage observation.
// Upstreams report prompt and completion counts at different points in a
// stream, so each field is taken independently when present.
func (u *Usage) Add(other Usage) {
	if other.PromptTokens > 0 {
		u.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens > 0 {
		u.CompletionTokens = other.CompletionTokens
	}
}

// Response is the canonical representation of one complete (non-streamed)
// inference response.
type Response struct {
	// ID is the upstream response identifier, may be empty
	ID string `json:"id,omitempty"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Text is the primary text content
	Text string `json:"text"`

	// FinishReason is the canonical finish reason (see constants below)
	FinishReason string `json:"finish_reason"`

	// Usage contains token counts reported by the upstream
	Usage Usage `json:"usage"`
}

// Chunk is one canonical streaming delta. A nil *Chunk from a decoder means
// the upstream event carries nothing renderable and must be skipped, not
// treated as an error.
type Chunk struct {
	// ID is the stream identifier, identical across all chunks of one call
	ID string `json:"id,omitempty"`

	// Model is the model generating the stream
	Model string `json:"model,omitempty"`

	// Delta is the incremental text, may be empty on the finish chunk
	Delta string `json:"delta,omitempty"`

	// FinishReason is set on the terminal chunk, canonical vocabulary
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is set when the upstream event carried usage metadata
	Usage *Usage `json:"usage,omitempty"`
}

// Canonical turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Canonical finish reasons. The canonical vocabulary matches the OpenAI
// dialect; the claude and gemini subpackages map to and from it.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
	FinishToolCalls     = "tool_calls"

	// FinishOther marks a termination with no OpenAI-native expression
	// (Gemini OTHER, Claude stop_sequence, unrecognized upstream values).
	// It renders as stop in the OpenAI dialect and stop_sequence in the
	// Claude dialect.
	FinishOther = "other"
)
