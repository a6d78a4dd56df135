package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/modelmux/modelmux/pkg/dialect"
	"github.com/modelmux/modelmux/pkg/dialect/claude"
	"github.com/modelmux/modelmux/pkg/dialect/gemini"
	"github.com/modelmux/modelmux/pkg/dialect/openai"
	"github.com/modelmux/modelmux/pkg/transcode"
)

// handleOpenAI serves POST /v1/chat/completions.
func (g *Gateway) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	var wire openai.Request
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req, err := openai.DecodeRequest(&wire)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}

	g.dispatch(w, r, req, clientConn{
		dialect:    DialectOpenAI,
		writeError: writeOpenAIError,
		newStream: func(w http.ResponseWriter) transcode.StreamWriter {
			return newOpenAIStreamWriter(w)
		},
		encode: func(resp *dialect.Response) interface{} {
			return openai.EncodeResponse(resp, "")
		},
	})
}

// handleClaude serves POST /v1/messages.
func (g *Gateway) handleClaude(w http.ResponseWriter, r *http.Request) {
	var wire claude.Request
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeClaudeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req, err := claude.DecodeRequest(&wire)
	if err != nil {
		writeClaudeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g.dispatch(w, r, req, clientConn{
		dialect:    DialectClaude,
		writeError: writeClaudeError,
		newStream: func(w http.ResponseWriter) transcode.StreamWriter {
			return newClaudeStreamWriter(w)
		},
		encode: func(resp *dialect.Response) interface{} {
			return claude.EncodeResponse(resp, "")
		},
	})
}

// handleGemini serves POST /v1beta/models/{action}, where action is
// "<model>:generateContent" or "<model>:streamGenerateContent". Streaming
// is chosen by the URL, not a body flag.
func (g *Gateway) handleGemini(w http.ResponseWriter, r *http.Request) {
	model, verb, ok := strings.Cut(r.PathValue("action"), ":")
	if !ok || model == "" {
		writeGeminiError(w, http.StatusNotFound, "expected models/<model>:generateContent")
		return
	}

	var stream bool
	switch verb {
	case "generateContent":
		stream = false
	case "streamGenerateContent":
		stream = true
	default:
		writeGeminiError(w, http.StatusNotFound, "unknown method "+verb)
		return
	}

	var wire gemini.Request
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeGeminiError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req, err := gemini.DecodeRequest(&wire, model)
	if err != nil {
		writeGeminiError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Stream = stream

	g.dispatch(w, r, req, clientConn{
		dialect:    DialectGemini,
		writeError: writeGeminiError,
		newStream: func(w http.ResponseWriter) transcode.StreamWriter {
			return newGeminiStreamWriter(w)
		},
		encode: func(resp *dialect.Response) interface{} {
			return gemini.EncodeResponse(resp)
		},
	})
}
