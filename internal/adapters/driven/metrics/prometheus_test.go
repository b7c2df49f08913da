package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.ObserveQuery(domain.IntentTroubleshooting, "answered", 120*time.Millisecond)
	r.ObserveQuery(domain.IntentTroubleshooting, "answered", 80*time.Millisecond)
	r.ObserveQuery("", "too_short", time.Millisecond)
	r.SourceFailure(domain.SourceGitHub, "timeout")
	r.CacheLookup(true)
	r.CacheLookup(false)
	r.CacheLookup(false)
	r.DocumentsRefreshed(domain.SourceStackOverflow, 12)
	r.DocumentsRefreshed(domain.SourceStackOverflow, 0)
	r.RateLimited(domain.SourceGitHub)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.queries.WithLabelValues("troubleshooting", "answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.queries.WithLabelValues("unclassified", "too_short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sourceFailures.WithLabelValues("github", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("false")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.refreshed.WithLabelValues("stackoverflow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rateLimited.WithLabelValues("github")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.queryLatency))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RateLimited(domain.SourceGitHub)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.rateLimited.WithLabelValues("github")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rateLimited.WithLabelValues("github")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.SourceFailure(domain.SourceStackOverflow, "rate_limited")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `supportbot_source_failures_total{reason="rate_limited",source="stackoverflow"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
