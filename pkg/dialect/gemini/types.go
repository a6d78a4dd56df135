package gemini

// Gemini generateContent wire types (supported subset).

// Request represents a generateContent request.
type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one conversation entry.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part is one content fragment; the subset carries text parts only.
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig carries the generation parameters.
type GenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// Response represents a generateContent response; streamed chunks share the
// same shape.
type Response struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate is one generated alternative.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// UsageMetadata carries token counts.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// ErrorResponse is the Gemini error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error fields inside the envelope.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Gemini finish reasons.
const (
	FinishStop       = "STOP"
	FinishMaxTokens  = "MAX_TOKENS"
	FinishSafety     = "SAFETY"
	FinishRecitation = "RECITATION"
	FinishOther      = "OTHER"
)

// Gemini content roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)
