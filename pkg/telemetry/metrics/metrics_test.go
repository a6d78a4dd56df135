package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/modelmux/modelmux/pkg/dialect"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector(nil)

	c.RecordRequest("openai", "openai--gpt-4o", "acct-a", "2xx", 150*time.Millisecond)
	c.RecordRequest("openai", "openai--gpt-4o", "acct-a", "2xx", 250*time.Millisecond)
	c.RecordUsage("openai--gpt-4o", "acct-a", dialect.Usage{PromptTokens: 10, CompletionTokens: 20})
	c.RecordFallback("opus-4.5", "anthropic--claude-4.5-opus")
	c.RecordAuthRetry("acct-a")
	c.RecordTokenExchange("acct-a", nil)
	c.RecordTokenExchange("acct-a", errors.New("boom"))

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("openai", "openai--gpt-4o", "acct-a", "2xx")); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.tokensTotal.WithLabelValues("openai--gpt-4o", "acct-a", "prompt")); got != 10 {
		t.Errorf("prompt tokens = %v, want 10", got)
	}
	if got := testutil.ToFloat64(c.tokensTotal.WithLabelValues("openai--gpt-4o", "acct-a", "completion")); got != 20 {
		t.Errorf("completion tokens = %v, want 20", got)
	}
	if got := testutil.ToFloat64(c.fallbacksTotal.WithLabelValues("opus-4.5", "anthropic--claude-4.5-opus")); got != 1 {
		t.Errorf("fallbacks_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.tokenExchanges.WithLabelValues("acct-a", "failure")); got != 1 {
		t.Errorf("failed exchanges = %v, want 1", got)
	}
}

func TestStreamGauge(t *testing.T) {
	c := NewCollector(nil)

	done := c.StreamStarted()
	if got := testutil.ToFloat64(c.activeStreams); got != 1 {
		t.Errorf("active_streams = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(c.activeStreams); got != 0 {
		t.Errorf("active_streams after done = %v, want 0", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollector(nil)
	c.RecordRequest("claude", "anthropic--claude-4.5-opus", "acct-a", "2xx", time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "modelmux_requests_total") {
		t.Error("exposition does not contain modelmux_requests_total")
	}
}
