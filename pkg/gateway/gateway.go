package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/modelmux/modelmux/pkg/config"
	"github.com/modelmux/modelmux/pkg/credentials"
	"github.com/modelmux/modelmux/pkg/dialect"
	"github.com/modelmux/modelmux/pkg/gateway/middleware"
	"github.com/modelmux/modelmux/pkg/routing"
	"github.com/modelmux/modelmux/pkg/telemetry/metrics"
	"github.com/modelmux/modelmux/pkg/transcode"
	"github.com/modelmux/modelmux/pkg/usage"
)

// Client-facing dialect names, used as metric and ledger labels.
const (
	DialectOpenAI = "openai"
	DialectClaude = "claude"
	DialectGemini = "gemini"
)

// Gateway holds the request-path dependencies: the router (swappable on
// configuration reload), the credential cache, the transcoder, and the
// optional usage ledger and metrics collector.
type Gateway struct {
	cfg        *config.Config
	router     atomic.Pointer[routing.Router]
	creds      *credentials.Cache
	transcoder *transcode.Transcoder
	ledger     *usage.Ledger
	collector  *metrics.Collector
	auth       *middleware.Authenticator
}

// New creates a Gateway over the given routing table. The ledger and
// collector may be nil, which disables usage recording and metrics.
func New(cfg *config.Config, table *routing.Table, ledger *usage.Ledger, collector *metrics.Collector) *Gateway {
	creds := credentials.NewCache()

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	g := &Gateway{
		cfg:        cfg,
		creds:      creds,
		transcoder: transcode.New(creds, client, cfg.Upstream.Timeout),
		ledger:     ledger,
		collector:  collector,
		auth:       middleware.NewAuthenticator(cfg.Auth.APIKeys),
	}
	g.router.Store(routing.NewRouter(table))

	if collector != nil {
		creds.OnExchange = collector.RecordTokenExchange
		g.transcoder.OnAuthRetry = collector.RecordAuthRetry
	}
	return g
}

// SwapTable replaces the routing table, typically after a configuration
// reload. In-flight requests finish against the router they resolved with.
func (g *Gateway) SwapTable(table *routing.Table) {
	g.router.Store(routing.NewRouter(table))
	slog.Info("routing table swapped",
		"accounts", len(table.Accounts()),
	)
}

// clientConn bundles the dialect-specific rendering for one request: how
// to write an error body, how to open a stream writer, and how to encode
// a buffered response.
type clientConn struct {
	dialect    string
	writeError func(w http.ResponseWriter, status int, message string)
	newStream  func(w http.ResponseWriter) transcode.StreamWriter
	encode     func(resp *dialect.Response) interface{}
}

// dispatch runs the dialect-independent request path: resolve the model,
// call upstream (streaming or buffered), and record usage and metrics.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request, req *dialect.Request, conn clientConn) {
	start := time.Now()
	ctx := r.Context()

	res, err := g.router.Load().Resolve(req.Model)
	if err != nil {
		g.fail(w, conn, req, nil, err, start)
		return
	}

	if res.Model != req.Model {
		slog.InfoContext(ctx, "model alias fallback",
			"requested", req.Model,
			"resolved", res.Model,
			"account", res.Account.Name,
		)
		if g.collector != nil {
			g.collector.RecordFallback(req.Model, res.Model)
		}
	}

	if req.Stream {
		g.dispatchStream(w, r, req, res, conn, start)
		return
	}

	resp, err := g.transcoder.Complete(ctx, res, req)
	if err != nil {
		g.fail(w, conn, req, res, err, start)
		return
	}

	g.record(ctx, req, res, conn.dialect, false, resp.FinishReason, resp.Usage, http.StatusOK, start)
	writeJSON(w, http.StatusOK, conn.encode(resp))
}

// dispatchStream runs the streaming path. Once the first chunk is written
// the status line is gone; later failures are reported in-band by the
// transcoder and only logged here.
func (g *Gateway) dispatchStream(w http.ResponseWriter, r *http.Request, req *dialect.Request, res *routing.Resolution, conn clientConn, start time.Time) {
	ctx := r.Context()

	var done func()
	if g.collector != nil {
		done = g.collector.StreamStarted()
		defer done()
	}

	result, err := g.transcoder.Stream(ctx, res, req, conn.newStream(w))
	if err != nil {
		if result == nil {
			// Nothing reached the client yet; a proper status line is
			// still possible.
			g.fail(w, conn, req, res, err, start)
			return
		}
		slog.ErrorContext(ctx, "stream failed mid-flight",
			"account", res.Account.Name,
			"model", res.Model,
			"error", err,
		)
		g.record(ctx, req, res, conn.dialect, true, result.FinishReason, result.Usage, http.StatusBadGateway, start)
		return
	}

	g.record(ctx, req, res, conn.dialect, true, result.FinishReason, result.Usage, http.StatusOK, start)
}

// fail maps the error to an HTTP status and writes it in the client's
// dialect, recording the outcome.
func (g *Gateway) fail(w http.ResponseWriter, conn clientConn, req *dialect.Request, res *routing.Resolution, err error, start time.Time) {
	status, message, retryAfter := mapError(err)

	account := ""
	if res != nil {
		account = res.Account.Name
	}
	slog.Error("request failed",
		"dialect", conn.dialect,
		"model", req.Model,
		"account", account,
		"status", status,
		"error", err,
	)

	if g.collector != nil {
		model := req.Model
		if res != nil {
			model = res.Model
		}
		g.collector.RecordRequest(conn.dialect, model, account, statusClass(status), time.Since(start))
	}

	setRetryAfter(w, retryAfter)
	conn.writeError(w, status, message)
}

// record persists the call's usage and emits request metrics. The ledger
// write survives client disconnects.
func (g *Gateway) record(ctx context.Context, req *dialect.Request, res *routing.Resolution, clientDialect string, stream bool, finishReason string, u dialect.Usage, status int, start time.Time) {
	if g.collector != nil {
		g.collector.RecordRequest(clientDialect, res.Model, res.Account.Name, statusClass(status), time.Since(start))
		g.collector.RecordUsage(res.Model, res.Account.Name, u)
	}

	if g.ledger == nil {
		return
	}
	entry := &usage.Entry{
		RequestedModel: req.Model,
		ResolvedModel:  res.Model,
		Account:        res.Account.Name,
		Dialect:        clientDialect,
		Stream:         stream,
		FinishReason:   finishReason,
		Usage:          u,
	}
	if err := g.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to record usage",
			"account", res.Account.Name,
			"model", res.Model,
			"error", err,
		)
	}
}

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response body", "error", err)
	}
}

// statusClass buckets a status code into the label vocabulary used by the
// request counter ("2xx", "4xx", "5xx").
func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
