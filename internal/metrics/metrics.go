// Package metrics exposes prometheus collectors for rebuilds, the page
// store and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/rebuild"
)

const namespace = "tessera"

// Metrics owns a private registry so that several servers (and tests) can
// coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	rebuilds        *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	pageChanges     *prometheus.CounterVec
	contentErrors   *prometheus.CounterVec
	pages           prometheus.Gauge
	generation      prometheus.Gauge

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: status (success, failure)
		rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "total",
			Help:      "Total rebuilds by outcome",
		}, []string{"status"}),

		rebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "duration_seconds",
			Help:      "Time to scan, diff and install all content",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		// Labels: change (added, updated, removed)
		pageChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pages",
			Name:      "changes_total",
			Help:      "Page changes applied by rebuilds",
		}, []string{"change"}),

		// Labels: kind (error taxonomy kind)
		contentErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "errors_total",
			Help:      "Files skipped or pages dropped during rebuilds",
		}, []string{"kind"}),

		pages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pages",
			Name:      "served",
			Help:      "Pages in the live snapshot",
		}),

		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "generation",
			Help:      "Generation of the live snapshot",
		}),

		// Labels: code (HTTP status code)
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by status code",
		}, []string{"code"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRebuild records a successful rebuild.
func (m *Metrics) ObserveRebuild(res rebuild.Result) {
	m.rebuilds.WithLabelValues("success").Inc()
	m.rebuildDuration.Observe(res.Duration.Seconds())
	m.pageChanges.WithLabelValues("added").Add(float64(len(res.Added)))
	m.pageChanges.WithLabelValues("updated").Add(float64(len(res.Updated)))
	m.pageChanges.WithLabelValues("removed").Add(float64(len(res.Removed)))
	for _, err := range res.Errors {
		kind, ok := errors.KindOf(err)
		if !ok {
			kind = errors.KindOther
		}
		m.contentErrors.WithLabelValues(string(kind)).Inc()
	}
	m.generation.Set(float64(res.Generation))
	if res.Snapshot != nil {
		m.pages.Set(float64(res.Snapshot.Len()))
	}
}

// RebuildFailed records an abandoned rebuild.
func (m *Metrics) RebuildFailed() {
	m.rebuilds.WithLabelValues("failure").Inc()
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.requests.WithLabelValues(code).Inc()
	m.requestDuration.WithLabelValues(code).Observe(elapsed.Seconds())
}
