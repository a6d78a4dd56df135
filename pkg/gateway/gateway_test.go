package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/modelmux/modelmux/pkg/config"
	"github.com/modelmux/modelmux/pkg/routing"
)

// newTokenServer serves the client-credentials token endpoint, counting
// exchanges when count is non-nil.
func newTokenServer(t *testing.T, count *atomic.Int64) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count != nil {
			count.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testAccount(name, tokenURL string, deployments map[string][]string) *routing.Account {
	return &routing.Account{
		Name:          name,
		ResourceGroup: name + "-rg",
		Credential: routing.Credential{
			ClientID:      "client-" + name,
			ClientSecret:  "secret",
			TokenEndpoint: tokenURL,
			TenantID:      "tenant-" + name,
		},
		Deployments: deployments,
	}
}

// newTestServer builds a gateway over the accounts and serves it.
func newTestServer(t *testing.T, cfg *config.Config, accounts ...*routing.Account) *httptest.Server {
	t.Helper()
	table, err := routing.NewTable(accounts)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	srv := NewServer(cfg, New(cfg, table, nil, nil))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOpenAIBufferedRoundTrip(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("upstream path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("AI-Resource-Group"); got != "acct-rg" {
			t.Errorf("AI-Resource-Group = %q", got)
		}
		if got := r.Header.Get("AI-Tenant-Id"); got != "tenant-acct" {
			t.Errorf("AI-Tenant-Id = %q", got)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode upstream body: %v", err)
		}
		if body["model"] != "openai--gpt-4o" {
			t.Errorf("upstream model = %v, want openai--gpt-4o", body["model"])
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"up-1","object":"chat.completion","model":"openai--gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Model != "openai--gpt-4o" {
		t.Errorf("model = %q", out.Model)
	}
	if len(out.Choices) != 1 || out.Choices[0].Message.Content != "hello" {
		t.Errorf("choices = %+v", out.Choices)
	}
	if out.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %q", out.Choices[0].FinishReason)
	}
	if out.Usage.TotalTokens != 5 {
		t.Errorf("total_tokens = %d, want 5", out.Usage.TotalTokens)
	}
}

func TestGeminiClientStreamsFromOpenAIDeployment(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"s1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"s1","choices":[{"index":0,"delta":{"content":"lo"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"s1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"s1","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":3,"total_tokens":4}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1beta/models/openai--gpt-4o:streamGenerateContent",
		`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)

	if strings.Contains(body, "[DONE]") {
		t.Error("gemini stream must not carry the [DONE] sentinel")
	}
	if !strings.Contains(body, `"Hel"`) || !strings.Contains(body, `"lo"`) {
		t.Errorf("missing text deltas in body:\n%s", body)
	}

	// The last event carries the accumulated usage.
	var lastData string
	for _, line := range strings.Split(body, "\n") {
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			lastData = after
		}
	}
	var final struct {
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal([]byte(lastData), &final); err != nil {
		t.Fatalf("decode final event %q: %v", lastData, err)
	}
	if final.UsageMetadata.TotalTokenCount != 4 {
		t.Errorf("totalTokenCount = %d, want 4", final.UsageMetadata.TotalTokenCount)
	}
	if final.UsageMetadata.PromptTokenCount != 1 || final.UsageMetadata.CandidatesTokenCount != 3 {
		t.Errorf("usage = %+v", final.UsageMetadata)
	}
}

func TestClaudeAliasFallbackToConverse(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/converse" {
			t.Errorf("upstream path = %q, want /converse", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"output":{"message":{"role":"assistant","content":[{"text":"calling tool"}]}},
			"stopReason":"tool_use","usage":{"inputTokens":5,"outputTokens":7}}`)
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"anthropic--claude-4.5-opus": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/messages",
		`{"model":"opus-4.5","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Type    string `json:"type"`
		Model   string `json:"model"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Model != "opus-4.5" {
		t.Errorf("model = %q, want the requested alias echoed back", out.Model)
	}
	if out.StopReason != "tool_use" {
		t.Errorf("stop_reason = %q, want tool_use", out.StopReason)
	}
	if len(out.Content) != 1 || out.Content[0].Text != "calling tool" {
		t.Errorf("content = %+v", out.Content)
	}
	if out.Usage.InputTokens != 5 || out.Usage.OutputTokens != 7 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestClaudeClientStreamsFromConverseDeployment(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/converse-stream" {
			t.Errorf("upstream path = %q, want /converse-stream", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// Converse upstreams report usage in a metadata event that follows
		// messageStop.
		fmt.Fprint(w, `data: {"messageStart":{"role":"assistant"}}`+"\n\n")
		fmt.Fprint(w, `data: {"contentBlockDelta":{"delta":{"type":"text","text":"Hi"}}}`+"\n\n")
		fmt.Fprint(w, `data: {"messageStop":{"stopReason":"end_turn"}}`+"\n\n")
		fmt.Fprint(w, `data: {"metadata":{"usage":{"inputTokens":3,"outputTokens":1}}}`+"\n\n")
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"anthropic--claude-4.5-opus": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/messages",
		`{"model":"opus-4.5","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)

	for _, name := range []string{"message_start", "content_block_delta", "content_block_stop", "message_delta", "message_stop"} {
		if !strings.Contains(body, "event: "+name) {
			t.Errorf("stream missing %s event:\n%s", name, body)
		}
	}
	if !strings.Contains(body, `"text":"Hi"`) {
		t.Errorf("missing text delta in body:\n%s", body)
	}

	// The message_delta event carries the mapped stop reason and the usage
	// accumulated from the trailing metadata event.
	var deltaData string
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if line == "event: message_delta" && i+1 < len(lines) {
			deltaData = strings.TrimPrefix(lines[i+1], "data: ")
		}
	}
	var delta struct {
		Delta struct {
			StopReason string `json:"stop_reason"`
		} `json:"delta"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(deltaData), &delta); err != nil {
		t.Fatalf("decode message_delta %q: %v", deltaData, err)
	}
	if delta.Delta.StopReason != "end_turn" {
		t.Errorf("stop_reason = %q, want end_turn", delta.Delta.StopReason)
	}
	if delta.Usage.InputTokens != 3 || delta.Usage.OutputTokens != 1 {
		t.Errorf("usage = %+v, want input 3 output 1", delta.Usage)
	}
}

func TestStreamRequestFailingBeforeFirstEvent(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	// A failure before the first event is a plain JSON error response; the
	// streaming headers must not leak onto it.
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := resp.Header.Get("Cache-Control"); got == "no-cache" {
		t.Errorf("Cache-Control = %q, streaming header leaked", got)
	}
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Error.Type != "rate_limit_error" {
		t.Errorf("error type = %q, want rate_limit_error", out.Error.Type)
	}
}

func TestUpstreamAuthRetrySucceeds(t *testing.T) {
	var exchanges, calls atomic.Int64
	tokens := newTokenServer(t, &exchanges)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"token expired"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"up-2","object":"chat.completion","model":"openai--gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
	if got := exchanges.Load(); got != 2 {
		t.Errorf("token exchanges = %d, want 2 (initial plus refresh)", got)
	}
}

func TestUpstreamAuthRetryExhausted(t *testing.T) {
	tokens := newTokenServer(t, nil)

	var calls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want exactly 2", got)
	}
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Error.Type != "api_error" {
		t.Errorf("error type = %q, want api_error", out.Error.Type)
	}
}

func TestModelNotAvailable(t *testing.T) {
	tokens := newTokenServer(t, nil)

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"anthropic--claude-4.5-opus": {"http://unused.invalid"}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"gpt-nonexistent","messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var out struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Error.Type != "invalid_request_error" {
		t.Errorf("error type = %q", out.Error.Type)
	}
	if !strings.Contains(out.Error.Message, "gpt-nonexistent") {
		t.Errorf("message %q does not name the requested model", out.Error.Message)
	}
}

func TestRateLimitPropagatesRetryAfter(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "7" {
		t.Errorf("Retry-After = %q, want 7", got)
	}
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Error.Type != "rate_limit_error" {
		t.Errorf("error type = %q, want rate_limit_error", out.Error.Type)
	}
}

func TestClientAuthPerRouteErrorShape(t *testing.T) {
	tokens := newTokenServer(t, nil)

	cfg := &config.Config{}
	cfg.Auth.APIKeys = []string{"sekret"}

	ts := newTestServer(t, cfg,
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {"http://unused.invalid"}}))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"openai route", "/v1/chat/completions", `"type":"invalid_request_error"`},
		{"claude route", "/v1/messages", `"type":"error"`},
		{"gemini route", "/v1beta/models/m:generateContent", `"status":"UNAUTHENTICATED"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+tt.path, `{}`, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			raw, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(raw), tt.want) {
				t.Errorf("body %s missing %s", raw, tt.want)
			}
		})
	}
}

func TestClientAuthAcceptsAPIKeyHeaders(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"up-3","object":"chat.completion","model":"openai--gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	cfg.Auth.APIKeys = []string{"sekret"}

	ts := newTestServer(t, cfg,
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}))

	for _, headers := range []map[string]string{
		{"Authorization": "Bearer sekret"},
		{"X-Api-Key": "sekret"},
		{"X-Goog-Api-Key": "sekret"},
	} {
		resp := postJSON(t, ts.URL+"/v1/chat/completions",
			`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, headers)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("headers %v: status = %d, want 200", headers, resp.StatusCode)
		}
	}
}

func TestOpenAIClientStreamTerminalSentinel(t *testing.T) {
	tokens := newTokenServer(t, nil)

	// Claude legacy deployment streaming back to an OpenAI client.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoke-with-response-stream" {
			t.Errorf("upstream path = %q, want /invoke-with-response-stream", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `event: message_start`+"\n"+`data: {"type":"message_start","message":{"id":"m1","type":"message","role":"assistant","content":[],"usage":{"input_tokens":9,"output_tokens":0}}}`+"\n\n")
		fmt.Fprint(w, `event: content_block_delta`+"\n"+`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi there"}}`+"\n\n")
		fmt.Fprint(w, `event: message_delta`+"\n"+`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`+"\n\n")
		fmt.Fprint(w, `event: message_stop`+"\n"+`data: {"type":"message_stop"}`+"\n\n")
	}))
	defer upstream.Close()

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"anthropic--claude-3.5-sonnet": {upstream.URL}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"anthropic--claude-3.5-sonnet","stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)

	if got := strings.Count(body, "data: [DONE]"); got != 1 {
		t.Fatalf("[DONE] count = %d, want exactly 1\n%s", got, body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Errorf("[DONE] is not the final event:\n%s", body)
	}
	if !strings.Contains(body, `"hi there"`) {
		t.Errorf("missing delta text:\n%s", body)
	}
	if !strings.Contains(body, `"finish_reason":"stop"`) {
		t.Errorf("end_turn should surface as finish_reason stop:\n%s", body)
	}
	if !strings.Contains(body, `"total_tokens":11`) {
		t.Errorf("terminal usage chunk should total 11 tokens:\n%s", body)
	}
}

func TestSwapTableTakesEffect(t *testing.T) {
	tokens := newTokenServer(t, nil)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"up-4","object":"chat.completion","model":"openai--gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	oldTable, err := routing.NewTable([]*routing.Account{
		testAccount("acct", tokens.URL, map[string][]string{"anthropic--claude-4.5-opus": {"http://unused.invalid"}}),
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	gw := New(cfg, oldTable, nil, nil)
	srv := NewServer(cfg, gw)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("pre-swap status = %d, want 404", resp.StatusCode)
	}

	newTable, err := routing.NewTable([]*routing.Account{
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {upstream.URL}}),
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	gw.SwapTable(newTable)

	resp = postJSON(t, ts.URL+"/v1/chat/completions",
		`{"model":"openai--gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post-swap status = %d, want 200", resp.StatusCode)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	tokens := newTokenServer(t, nil)

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {"http://unused.invalid"}}))

	resp := postJSON(t, ts.URL+"/v1/chat/completions", `{not json`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	tokens := newTokenServer(t, nil)

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {"http://unused.invalid"}}))

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	tokens := newTokenServer(t, nil)

	ts := newTestServer(t, &config.Config{},
		testAccount("acct", tokens.URL, map[string][]string{"openai--gpt-4o": {"http://unused.invalid"}}))

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
