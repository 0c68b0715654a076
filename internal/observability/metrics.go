// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label of RunsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeEmpty     = "empty"
	OutcomeBlank     = "blank"
	OutcomeCancelled = "cancelled"
)

// Summary outcomes used as the "outcome" label of SummariesTotal.
const (
	SummarySucceeded = "succeeded"
	SummaryFailed    = "failed"
)

// Metrics holds the Prometheus collectors for pipeline runs and the HTTP API.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// RunsTotal counts pipeline runs by outcome.
	RunsTotal *prometheus.CounterVec

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration prometheus.Histogram

	// PapersRetrieved observes how many papers each search returned.
	PapersRetrieved prometheus.Histogram

	// SummariesTotal counts per-paper summaries by outcome.
	SummariesTotal *prometheus.CounterVec

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes API request duration in seconds by route.
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates Metrics on a private registry. The namespace prefixes
// every metric name.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		PapersRetrieved: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_retrieved",
			Help:      "Number of papers returned per search",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		SummariesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of paper summaries by outcome",
		}, []string{"outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// ObservePapers records how many papers a search returned.
func (m *Metrics) ObservePapers(n int) {
	if m == nil {
		return
	}
	m.PapersRetrieved.Observe(float64(n))
}

// ObserveSummary records one summary outcome.
func (m *Metrics) ObserveSummary(failed bool) {
	if m == nil {
		return
	}
	outcome := SummarySucceeded
	if failed {
		outcome = SummaryFailed
	}
	m.SummariesTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
