package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.Metrics = (*Recorder)(nil)

const namespace = "supportbot"

// Recorder implements driven.Metrics on its own registry, so several
// recorders can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	queries        *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	sourceFailures *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	refreshed      *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
}

// New creates a recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// Labels: intent, outcome (answered, fallback, cached, too_short, unavailable, cancelled, error)
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "total",
			Help:      "Queries handled by intent and outcome",
		}, []string{"intent", "outcome"}),

		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),

		// Labels: source, reason (timeout, rate_limited, unavailable)
		sourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Per-request source failures by reason",
		}, []string{"source", "reason"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"hit"}),

		refreshed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "documents_total",
			Help:      "Documents upserted by background and manual refresh",
		}, []string{"source"}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governor",
			Name:      "rejections_total",
			Help:      "Requests rejected because the source budget was exhausted",
		}, []string{"source"}),
	}
}

// ObserveQuery records one finished query.
func (r *Recorder) ObserveQuery(intent domain.Intent, outcome string, elapsed time.Duration) {
	if intent == "" {
		intent = domain.IntentUnclassified
	}
	r.queries.WithLabelValues(string(intent), outcome).Inc()
	r.queryLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SourceFailure records a source that failed for one request.
func (r *Recorder) SourceFailure(source domain.Source, reason string) {
	r.sourceFailures.WithLabelValues(string(source), reason).Inc()
}

// CacheLookup records a cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	r.cacheLookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// DocumentsRefreshed adds n upserted documents for source.
func (r *Recorder) DocumentsRefreshed(source domain.Source, n int) {
	if n <= 0 {
		return
	}
	r.refreshed.WithLabelValues(string(source)).Add(float64(n))
}

// RateLimited records a governor rejection.
func (r *Recorder) RateLimited(source domain.Source) {
	r.rateLimited.WithLabelValues(string(source)).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
