package transcode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelmux/modelmux/pkg/credentials"
	"github.com/modelmux/modelmux/pkg/dialect"
	"github.com/modelmux/modelmux/pkg/routing"
)

// newTokenServer returns a client-credentials token endpoint that hands out
// sequentially numbered tokens.
func newTokenServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, count)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func testAccount(tokenURL string) *routing.Account {
	return &routing.Account{
		Name:          "acct-a",
		ResourceGroup: "rg-default",
		Credential: routing.Credential{
			ClientID:      "client-id",
			ClientSecret:  "client-secret",
			TokenEndpoint: tokenURL,
			TenantID:      "tenant-1",
		},
	}
}

func testResolution(account *routing.Account, baseURL, model string, proto routing.Protocol) *routing.Resolution {
	return &routing.Resolution{
		Account:  account,
		BaseURL:  baseURL,
		Model:    model,
		Protocol: proto,
	}
}

// captureWriter records everything the transcoder emits.
type captureWriter struct {
	chunks     []*dialect.Chunk
	errors     []string
	terminated int
	finish     string
	usage      dialect.Usage
}

func (w *captureWriter) WriteChunk(chunk *dialect.Chunk) error {
	w.chunks = append(w.chunks, chunk)
	return nil
}

func (w *captureWriter) WriteError(message string, statusCode int) error {
	w.errors = append(w.errors, message)
	return nil
}

func (w *captureWriter) Terminate(finishReason string, usage dialect.Usage) error {
	w.terminated++
	w.finish = finishReason
	w.usage = usage
	return nil
}

func TestCompleteOpenAI(t *testing.T) {
	tokens, _ := newTokenServer(t)

	var gotAuth, gotGroup, gotTenant string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotGroup = r.Header.Get("AI-Resource-Group")
		gotTenant = r.Header.Get("AI-Tenant-Id")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-up1",
			"object": "chat.completion",
			"model": "openai--gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
		}`)
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model: "gpt-4o",
		Turns: []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
	}

	resp, err := tr.Complete(context.Background(), res, req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-1")
	}
	if gotGroup != "rg-default" {
		t.Errorf("resource group header = %q, want %q", gotGroup, "rg-default")
	}
	if gotTenant != "tenant-1" {
		t.Errorf("tenant header = %q, want %q", gotTenant, "tenant-1")
	}
	if resp.Text != "hello there" {
		t.Errorf("Text = %q, want %q", resp.Text, "hello there")
	}
	if resp.Model != "gpt-4o" {
		t.Errorf("Model = %q, want requested name %q", resp.Model, "gpt-4o")
	}
	if resp.FinishReason != dialect.FinishStop {
		t.Errorf("FinishReason = %q, want %q", resp.FinishReason, dialect.FinishStop)
	}
	if resp.Usage.Total() != 10 {
		t.Errorf("Usage.Total() = %d, want 10", resp.Usage.Total())
	}
}

func TestAuthRetryBound(t *testing.T) {
	tokens, exchanges := newTokenServer(t)

	attempts := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model: "gpt-4o",
		Turns: []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
	}

	_, err := tr.Complete(context.Background(), res, req)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Complete() error = %v, want *AuthError", err)
	}
	if attempts != 2 {
		t.Errorf("upstream attempts = %d, want exactly 2", attempts)
	}
	if *exchanges != 2 {
		t.Errorf("token exchanges = %d, want 2 (initial + forced refresh)", *exchanges)
	}
}

func TestAuthRetryRecovers(t *testing.T) {
	tokens, _ := newTokenServer(t)

	attempts := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, `{"error":"expired"}`, http.StatusForbidden)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-2" {
			t.Errorf("retry Authorization = %q, want refreshed token %q", got, "Bearer tok-2")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-up2",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`)
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model: "gpt-4o",
		Turns: []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
	}

	resp, err := tr.Complete(context.Background(), res, req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("upstream attempts = %d, want 2", attempts)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want %q", resp.Text, "ok")
	}
}

func TestRateLimitPropagatesRetryAfter(t *testing.T) {
	tokens, _ := newTokenServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model: "gpt-4o",
		Turns: []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
	}

	_, err := tr.Complete(context.Background(), res, req)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Complete() error = %v, want *RateLimitError", err)
	}
	if rlErr.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %s, want 30s", rlErr.RetryAfter)
	}
}

func TestStreamOpenAIUpstream(t *testing.T) {
	tokens, _ := newTokenServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			``,
			`data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			``,
			`data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":2,"completion_tokens":2,"total_tokens":4}}`,
			``,
			`data: [DONE]`,
			``,
		}
		fmt.Fprint(w, strings.Join(lines, "\n"))
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model:  "gemini-2.5-pro",
		Turns:  []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
		Stream: true,
	}

	w := &captureWriter{}
	result, err := tr.Stream(context.Background(), res, req, w)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text strings.Builder
	for _, chunk := range w.chunks {
		text.WriteString(chunk.Delta)
		if chunk.ID != result.ID {
			t.Errorf("chunk ID = %q, want stream ID %q", chunk.ID, result.ID)
		}
		if chunk.Model != "gemini-2.5-pro" {
			t.Errorf("chunk Model = %q, want requested name", chunk.Model)
		}
	}
	if text.String() != "Hello" {
		t.Errorf("assembled text = %q, want %q", text.String(), "Hello")
	}
	if w.terminated != 1 {
		t.Errorf("Terminate calls = %d, want exactly 1", w.terminated)
	}
	if w.finish != dialect.FinishStop {
		t.Errorf("terminal finish reason = %q, want %q", w.finish, dialect.FinishStop)
	}
	if w.usage.Total() != 4 {
		t.Errorf("accumulated usage total = %d, want 4", w.usage.Total())
	}
	if len(w.errors) != 0 {
		t.Errorf("unexpected in-band errors: %v", w.errors)
	}
}

func TestStreamClaudeLegacyUpstream(t *testing.T) {
	tokens, _ := newTokenServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/invoke-with-response-stream") {
			t.Errorf("stream path = %q, want invoke-with-response-stream suffix", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`event: message_start`,
			`data: {"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":9,"output_tokens":0}}}`,
			``,
			`event: content_block_delta`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi!"}}`,
			``,
			`event: message_delta`,
			`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}`,
			``,
			`event: message_stop`,
			`data: {"type":"message_stop"}`,
			``,
		}
		fmt.Fprint(w, strings.Join(lines, "\n"))
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "anthropic--claude-4.5-sonnet", routing.ProtoClaudeLegacy)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model:  "claude-sonnet",
		Turns:  []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
		Stream: true,
	}

	w := &captureWriter{}
	_, err := tr.Stream(context.Background(), res, req, w)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text strings.Builder
	for _, chunk := range w.chunks {
		text.WriteString(chunk.Delta)
	}
	if text.String() != "Hi!" {
		t.Errorf("assembled text = %q, want %q", text.String(), "Hi!")
	}
	if w.terminated != 1 {
		t.Errorf("Terminate calls = %d, want exactly 1", w.terminated)
	}
	if w.finish != dialect.FinishStop {
		t.Errorf("terminal finish reason = %q, want %q", w.finish, dialect.FinishStop)
	}
	if w.usage.PromptTokens != 9 || w.usage.CompletionTokens != 5 {
		t.Errorf("usage = %+v, want prompt 9 completion 5", w.usage)
	}
}

func TestStreamClaudeConverseUpstream(t *testing.T) {
	tokens, _ := newTokenServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/converse-stream") {
			t.Errorf("stream path = %q, want converse-stream suffix", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// Converse upstreams send the usage-bearing metadata event after
		// messageStop; the stream must be read through to the end.
		lines := []string{
			`data: {"messageStart":{"role":"assistant"}}`,
			``,
			`data: {"contentBlockDelta":{"delta":{"type":"text","text":"Hi"}}}`,
			``,
			`data: {"messageStop":{"stopReason":"end_turn"}}`,
			``,
			`data: {"metadata":{"usage":{"inputTokens":3,"outputTokens":1}}}`,
			``,
		}
		fmt.Fprint(w, strings.Join(lines, "\n"))
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "anthropic--claude-4.5-sonnet", routing.ProtoClaudeConverse)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model:  "claude-sonnet",
		Turns:  []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
		Stream: true,
	}

	w := &captureWriter{}
	result, err := tr.Stream(context.Background(), res, req, w)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text strings.Builder
	for _, chunk := range w.chunks {
		text.WriteString(chunk.Delta)
	}
	if text.String() != "Hi" {
		t.Errorf("assembled text = %q, want %q", text.String(), "Hi")
	}
	if w.terminated != 1 {
		t.Errorf("Terminate calls = %d, want exactly 1", w.terminated)
	}
	if w.finish != dialect.FinishStop {
		t.Errorf("terminal finish reason = %q, want %q", w.finish, dialect.FinishStop)
	}
	if w.usage.PromptTokens != 3 || w.usage.CompletionTokens != 1 {
		t.Errorf("usage = %+v, want prompt 3 completion 1 from trailing metadata", w.usage)
	}
	if result.Usage.PromptTokens != 3 || result.Usage.CompletionTokens != 1 {
		t.Errorf("result usage = %+v, want prompt 3 completion 1", result.Usage)
	}
	if len(w.errors) != 0 {
		t.Errorf("unexpected in-band errors: %v", w.errors)
	}
}

func TestStreamMidStreamFailure(t *testing.T) {
	tokens, _ := newTokenServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// One valid chunk, then garbage.
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model:  "gpt-4o",
		Turns:  []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
		Stream: true,
	}

	w := &captureWriter{}
	_, err := tr.Stream(context.Background(), res, req, w)

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("Stream() error = %v, want *StreamError", err)
	}
	if len(w.chunks) != 1 || w.chunks[0].Delta != "partial" {
		t.Errorf("chunks before failure = %+v, want the one partial delta", w.chunks)
	}
	if len(w.errors) != 1 {
		t.Errorf("in-band errors = %d, want exactly 1", len(w.errors))
	}
	if w.terminated != 1 {
		t.Errorf("Terminate calls = %d, want exactly 1 even on failure", w.terminated)
	}
}

func TestUpstreamErrorTruncatesBody(t *testing.T) {
	tokens, _ := newTokenServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 4*maxErrorBody), http.StatusBadGateway)
	}))
	defer upstream.Close()

	account := testAccount(tokens.URL)
	res := testResolution(account, upstream.URL, "openai--gpt-4o", routing.ProtoOpenAI)
	tr := New(credentials.NewCache(), nil, 0)

	req := &dialect.Request{
		Model: "gpt-4o",
		Turns: []dialect.Turn{{Role: dialect.RoleUser, Content: "hi"}},
	}

	_, err := tr.Complete(context.Background(), res, req)

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Complete() error = %v, want *UpstreamError", err)
	}
	if upErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", upErr.StatusCode)
	}
	if len(upErr.Message) > maxErrorBody+3 {
		t.Errorf("error body length = %d, want truncated to %d", len(upErr.Message), maxErrorBody)
	}
}

func TestUpstreamURL(t *testing.T) {
	account := &routing.Account{Name: "a"}
	tests := []struct {
		name   string
		proto  routing.Protocol
		stream bool
		want   string
	}{
		{"openai buffered", routing.ProtoOpenAI, false, "https://up/chat/completions"},
		{"openai stream", routing.ProtoOpenAI, true, "https://up/chat/completions"},
		{"claude legacy buffered", routing.ProtoClaudeLegacy, false, "https://up/invoke"},
		{"claude legacy stream", routing.ProtoClaudeLegacy, true, "https://up/invoke-with-response-stream"},
		{"converse buffered", routing.ProtoClaudeConverse, false, "https://up/converse"},
		{"converse stream", routing.ProtoClaudeConverse, true, "https://up/converse-stream"},
		{"gemini buffered", routing.ProtoGemini, false, "https://up/models/m:generateContent"},
		{"gemini stream", routing.ProtoGemini, true, "https://up/models/m:streamGenerateContent?alt=sse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &routing.Resolution{Account: account, BaseURL: "https://up", Model: "m", Protocol: tt.proto}
			if got := upstreamURL(res, tt.stream); got != tt.want {
				t.Errorf("upstreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
