// Package gemini converts between the supported subset of the Google Gemini
// generateContent wire format and the canonical dialect types.
//
// The subset covers contents/parts request bodies, candidates responses,
// usageMetadata token counts and the finishReason vocabulary. Tool
// declarations are not part of the subset and are dropped on encode.
package gemini
