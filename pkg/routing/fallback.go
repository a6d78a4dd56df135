package routing

import "strings"

// Family classifies a model name into the coarse model family used for
// alias fallback and upstream protocol selection.
type Family int

const (
	// FamilyOther covers OpenAI-compatible and unrecognized models.
	FamilyOther Family = iota

	// FamilyClaude covers Anthropic Claude models.
	FamilyClaude

	// FamilyGemini covers Google Gemini models.
	FamilyGemini
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyClaude:
		return "claude"
	case FamilyGemini:
		return "gemini"
	default:
		return "other"
	}
}

// Protocol is the wire encoding a deployment accepts.
type Protocol int

const (
	// ProtoOpenAI is the OpenAI chat-completions shape.
	ProtoOpenAI Protocol = iota

	// ProtoClaudeLegacy is the legacy Claude messages shape.
	ProtoClaudeLegacy

	// ProtoClaudeConverse is the modern Claude converse shape.
	ProtoClaudeConverse

	// ProtoGemini is the Gemini generateContent shape.
	ProtoGemini
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtoClaudeLegacy:
		return "claude-legacy"
	case ProtoClaudeConverse:
		return "claude-converse"
	case ProtoGemini:
		return "gemini"
	default:
		return "openai"
	}
}

// Canonical fallback chains, tried in order when a requested model name is
// not in the table. The first name present in the table wins and replaces
// the requested name for the rest of resolution.
var (
	opusFallbacks   = []string{"anthropic--claude-4.5-opus", "anthropic--claude-4-opus"}
	sonnetFallbacks = []string{"anthropic--claude-4.5-sonnet", "anthropic--claude-4-sonnet", "anthropic--claude-3.5-sonnet"}
	geminiFallbacks = []string{"google--gemini-2.5-pro"}
	otherFallbacks  = []string{"openai--gpt-4o"}
)

// ClassifyFamily classifies a model name by keyword. This is the single
// place the family heuristic lives.
func ClassifyFamily(model string) Family {
	name := strings.ToLower(model)
	switch {
	case strings.Contains(name, "claude"),
		strings.Contains(name, "opus"),
		strings.Contains(name, "sonnet"),
		strings.Contains(name, "haiku"):
		return FamilyClaude
	case strings.Contains(name, "gemini"):
		return FamilyGemini
	default:
		return FamilyOther
	}
}

// ClassifyProtocol maps a resolved model name to the wire encoding its
// deployment accepts. Claude deployments take the modern converse shape
// unless the name marks a 3.5-generation model, which still speaks the
// legacy messages shape.
func ClassifyProtocol(model string) Protocol {
	switch ClassifyFamily(model) {
	case FamilyClaude:
		if strings.Contains(strings.ToLower(model), "3.5") {
			return ProtoClaudeLegacy
		}
		return ProtoClaudeConverse
	case FamilyGemini:
		return ProtoGemini
	default:
		return ProtoOpenAI
	}
}

// fallbackChain returns the ordered canonical names to try for an
// unresolved model.
func fallbackChain(model string) []string {
	switch ClassifyFamily(model) {
	case FamilyClaude:
		if strings.Contains(strings.ToLower(model), "opus") {
			return opusFallbacks
		}
		return sonnetFallbacks
	case FamilyGemini:
		return geminiFallbacks
	default:
		return otherFallbacks
	}
}
