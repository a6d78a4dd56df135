package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/modelmux/modelmux/pkg/credentials"
	"github.com/modelmux/modelmux/pkg/dialect"
	"github.com/modelmux/modelmux/pkg/dialect/claude"
	"github.com/modelmux/modelmux/pkg/dialect/gemini"
	"github.com/modelmux/modelmux/pkg/dialect/openai"
	"github.com/modelmux/modelmux/pkg/routing"
)

// DefaultTimeout bounds one whole upstream call, streaming or not.
const DefaultTimeout = 5 * time.Minute

// maxErrorBody limits how much of an upstream error body is carried in
// returned errors.
const maxErrorBody = 2048

// Headers attached to every outbound call alongside the bearer token.
const (
	headerResourceGroup = "AI-Resource-Group"
	headerTenant        = "AI-Tenant-Id"
)

// StreamWriter receives the canonical chunks of one streaming call and
// renders them in the client's dialect. Implementations live next to the
// HTTP handlers; the transcoder only guarantees call order: zero or more
// WriteChunk calls, at most one WriteError, then exactly one Terminate.
type StreamWriter interface {
	// WriteChunk renders one canonical chunk. Chunks may carry only
	// usage, only a finish reason, or only a text delta.
	WriteChunk(chunk *dialect.Chunk) error

	// WriteError renders an in-band error event. Called only for
	// failures discovered after the stream has begun.
	WriteError(message string, statusCode int) error

	// Terminate renders the dialect's terminal sentinel.
	Terminate(finishReason string, usage dialect.Usage) error
}

// Result summarizes one finished streaming call.
type Result struct {
	// ID is the stream identifier shared by every chunk of the call.
	ID string

	// FinishReason is the last finish reason observed, in canonical form.
	FinishReason string

	// Usage is the accumulated token usage across the stream.
	Usage dialect.Usage
}

// Transcoder drives upstream calls for resolved deployments. It is safe
// for concurrent use; per-call state lives on the stack of each call.
type Transcoder struct {
	creds   *credentials.Cache
	client  *http.Client
	timeout time.Duration

	// OnAuthRetry, when non-nil, is invoked each time an upstream call
	// is retried after a credential refresh.
	OnAuthRetry func(account string)
}

// New creates a Transcoder using the given credential cache. A nil client
// falls back to a pooled default; a zero timeout falls back to
// DefaultTimeout.
func New(creds *credentials.Cache, client *http.Client, timeout time.Duration) *Transcoder {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transcoder{creds: creds, client: client, timeout: timeout}
}

// Complete performs one buffered (non-streaming) upstream call and returns
// the canonical response.
func (t *Transcoder) Complete(ctx context.Context, res *routing.Resolution, req *dialect.Request) (*dialect.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := encodeUpstreamRequest(res, req, false)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(ctx, res, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{
			Account: res.Account.Name,
			Message: "failed to read response",
			Cause:   err,
		}
	}

	out, err := decodeUpstreamResponse(res, raw)
	if err != nil {
		return nil, err
	}

	// The client gets back the model name it asked for, not the
	// deployment it landed on.
	out.Model = req.Model
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	return out, nil
}

// Stream performs one streaming upstream call, forwarding every decoded
// chunk to w as it arrives. The terminal sentinel is written exactly once,
// including on mid-stream failure, where it follows a single in-band error
// event.
func (t *Transcoder) Stream(ctx context.Context, res *routing.Resolution, req *dialect.Request, w StreamWriter) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := encodeUpstreamRequest(res, req, true)
	if err != nil {
		return nil, err
	}

	// Errors up to here happen before any bytes reach the client, so the
	// caller can still report them with an HTTP status code.
	resp, err := t.send(ctx, res, body, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	st := &streamState{id: uuid.NewString(), model: req.Model}

	if err := t.transcodeLoop(ctx, res, resp.Body, st, w); err != nil {
		streamErr := &StreamError{
			Account: res.Account.Name,
			Message: "upstream stream failed",
			Cause:   err,
		}
		// The status line is long gone; report in-band, then close the
		// stream the way the client dialect expects.
		if werr := w.WriteError(streamErr.Error(), http.StatusBadGateway); werr != nil {
			slog.Debug("dropping in-band stream error, client gone",
				"account", res.Account.Name,
				"error", werr,
			)
		}
		st.terminate(w)
		return st.result(), streamErr
	}

	if err := st.terminate(w); err != nil {
		return st.result(), &StreamError{
			Account: res.Account.Name,
			Message: "failed to write terminal event",
			Cause:   err,
		}
	}
	return st.result(), nil
}

// send issues the upstream HTTP request with a bearer token attached,
// retrying exactly once on 401/403 after invalidating the cached token.
// On success the caller owns the response body.
func (t *Transcoder) send(ctx context.Context, res *routing.Resolution, body []byte, stream bool) (*http.Response, error) {
	retried := false

	for {
		token, err := t.creds.GetToken(ctx, res.Account)
		if err != nil {
			return nil, err
		}

		url := upstreamURL(res, stream)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set(headerResourceGroup, res.Account.ResourceGroup)
		httpReq.Header.Set(headerTenant, res.Account.Credential.TenantID)
		if stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		slog.Debug("sending upstream request",
			"account", res.Account.Name,
			"model", res.Model,
			"url", url,
			"stream", stream,
		)

		resp, err := t.client.Do(httpReq)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &TimeoutError{Account: res.Account.Name, Timeout: t.timeout}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &UpstreamError{
				Account: res.Account.Name,
				Message: "request failed",
				Cause:   err,
			}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			if !retried {
				retried = true
				t.creds.Invalidate(res.Account)
				if t.OnAuthRetry != nil {
					t.OnAuthRetry(res.Account.Name)
				}
				slog.Info("upstream rejected token, refreshing and retrying once",
					"account", res.Account.Name,
					"status", resp.StatusCode,
				)
				continue
			}
			return nil, &AuthError{
				Account: res.Account.Name,
				Message: truncate(errorBody),
			}

		case http.StatusTooManyRequests:
			return nil, &RateLimitError{
				Account:    res.Account.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    truncate(errorBody),
			}

		default:
			return nil, &UpstreamError{
				Account:    res.Account.Name,
				StatusCode: resp.StatusCode,
				Message:    truncate(errorBody),
			}
		}
	}
}

// streamState tracks one in-flight stream: the identifier shared across
// chunks, accumulated usage, the last finish reason, and whether the
// terminal sentinel was already written.
type streamState struct {
	id           string
	model        string
	usage        dialect.Usage
	finishReason string
	sentinelSent bool
}

func (s *streamState) observe(chunk *dialect.Chunk) {
	if chunk.Usage != nil {
		s.usage.Add(*chunk.Usage)
	}
	if chunk.FinishReason != "" {
		s.finishReason = chunk.FinishReason
	}
}

// terminate writes the terminal sentinel at most once.
func (s *streamState) terminate(w StreamWriter) error {
	if s.sentinelSent {
		return nil
	}
	s.sentinelSent = true
	return w.Terminate(s.finishReason, s.usage)
}

func (s *streamState) result() *Result {
	return &Result{ID: s.id, FinishReason: s.finishReason, Usage: s.usage}
}

// transcodeLoop reads upstream events until the stream ends, decoding each
// into a canonical chunk and forwarding it immediately.
func (t *Transcoder) transcodeLoop(ctx context.Context, res *routing.Resolution, upstream io.Reader, st *streamState, w StreamWriter) error {
	reader := newSSEReader(upstream)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		chunk, done, err := decodeUpstreamEvent(res, event)
		if err != nil {
			return err
		}

		if chunk != nil {
			chunk.ID = st.id
			chunk.Model = st.model
			st.observe(chunk)
			if werr := w.WriteChunk(chunk); werr != nil {
				return werr
			}
		}
		if done {
			return nil
		}
	}
}

// upstreamURL builds the invoke URL for the resolved deployment.
func upstreamURL(res *routing.Resolution, stream bool) string {
	base := res.BaseURL
	switch res.Protocol {
	case routing.ProtoClaudeLegacy:
		if stream {
			return base + "/invoke-with-response-stream"
		}
		return base + "/invoke"
	case routing.ProtoClaudeConverse:
		if stream {
			return base + "/converse-stream"
		}
		return base + "/converse"
	case routing.ProtoGemini:
		if stream {
			return base + "/models/" + res.Model + ":streamGenerateContent?alt=sse"
		}
		return base + "/models/" + res.Model + ":generateContent"
	default:
		return base + "/chat/completions"
	}
}

// encodeUpstreamRequest renders the canonical request in the wire dialect
// the deployment accepts.
func encodeUpstreamRequest(res *routing.Resolution, req *dialect.Request, stream bool) ([]byte, error) {
	// Upstream sees the resolved deployment's model name.
	upReq := *req
	upReq.Model = res.Model

	var wire interface{}
	switch res.Protocol {
	case routing.ProtoClaudeLegacy:
		w := claude.EncodeRequestLegacy(&upReq)
		w.Stream = stream
		wire = w
	case routing.ProtoClaudeConverse:
		wire = claude.EncodeRequestConverse(&upReq)
	case routing.ProtoGemini:
		wire = gemini.EncodeRequest(&upReq)
	default:
		w := openai.EncodeRequest(&upReq)
		w.Stream = stream
		wire = w
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upstream request: %w", err)
	}
	return body, nil
}

// decodeUpstreamResponse parses a buffered upstream response body into the
// canonical form.
func decodeUpstreamResponse(res *routing.Resolution, raw []byte) (*dialect.Response, error) {
	var out *dialect.Response

	switch res.Protocol {
	case routing.ProtoClaudeLegacy:
		var resp claude.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, parseErr(res, raw, err)
		}
		out = claude.DecodeResponse(&resp)
	case routing.ProtoClaudeConverse:
		var resp claude.ConverseResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, parseErr(res, raw, err)
		}
		out = claude.DecodeConverseResponse(&resp)
	case routing.ProtoGemini:
		var resp gemini.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, parseErr(res, raw, err)
		}
		out = gemini.DecodeResponse(&resp)
	default:
		var resp openai.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, parseErr(res, raw, err)
		}
		out = openai.DecodeResponse(&resp)
	}

	if out == nil {
		return nil, parseErr(res, raw, errors.New("response carries no content"))
	}
	return out, nil
}

// decodeUpstreamEvent parses one upstream SSE event into a canonical chunk.
// done reports that the upstream signalled the end of the stream in-band.
func decodeUpstreamEvent(res *routing.Resolution, event *sseEvent) (chunk *dialect.Chunk, done bool, err error) {
	switch res.Protocol {
	case routing.ProtoClaudeLegacy:
		var ev claude.StreamEvent
		if event.Data != "" {
			if uerr := json.Unmarshal([]byte(event.Data), &ev); uerr != nil {
				return nil, false, parseErr(res, []byte(event.Data), uerr)
			}
		}
		if ev.Type == "" {
			ev.Type = event.Name
		}
		return claude.DecodeChunk(&ev), ev.Type == "message_stop", nil

	case routing.ProtoClaudeConverse:
		var ev claude.ConverseStreamEvent
		if uerr := json.Unmarshal([]byte(event.Data), &ev); uerr != nil {
			return nil, false, parseErr(res, []byte(event.Data), uerr)
		}
		// The usage-carrying metadata event arrives after messageStop, so
		// the converse stream is read through to EOF rather than stopping
		// at messageStop.
		return claude.DecodeConverseChunk(&ev), false, nil

	case routing.ProtoGemini:
		var resp gemini.Response
		if uerr := json.Unmarshal([]byte(event.Data), &resp); uerr != nil {
			return nil, false, parseErr(res, []byte(event.Data), uerr)
		}
		return gemini.DecodeChunk(&resp), false, nil

	default:
		if event.Data == "[DONE]" {
			return nil, true, nil
		}
		var wc openai.StreamChunk
		if uerr := json.Unmarshal([]byte(event.Data), &wc); uerr != nil {
			return nil, false, parseErr(res, []byte(event.Data), uerr)
		}
		return openai.DecodeChunk(&wc), false, nil
	}
}

func parseErr(res *routing.Resolution, raw []byte, cause error) error {
	return &ParseError{
		Account:     res.Account.Name,
		RawResponse: truncate(raw),
		Cause:       cause,
	}
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
