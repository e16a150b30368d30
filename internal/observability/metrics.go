package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	reportRunsTotal      *prometheus.CounterVec
	reportLatencySeconds *prometheus.HistogramVec
	reportCacheHitsTotal *prometheus.CounterVec
	upstreamCommentsLoad prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used for report observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		reportRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_runs_total",
			Help: "Total number of report runs, by report type and outcome.",
		}, []string{"report", "outcome"})

		reportLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_latency_seconds",
			Help:    "Latency distribution for report generation, including upstream fetches.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"report"})

		reportCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_cache_hits_total",
			Help: "Total number of report responses served from cache.",
		}, []string{"report"})

		upstreamCommentsLoad = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upstream_comments_loaded_total",
			Help: "Total number of lazy submission-comment fetches performed.",
		})

		prometheus.MustRegister(reportRunsTotal, reportLatencySeconds, reportCacheHitsTotal, upstreamCommentsLoad)
	})
}

// ReportRuns exposes the counter for report runs.
func ReportRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return reportRunsTotal
}

// ReportLatency exposes the latency histogram for report generation.
func ReportLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return reportLatencySeconds
}

// ReportCacheHits exposes the counter for cached report responses.
func ReportCacheHits() *prometheus.CounterVec {
	RegisterMetrics()
	return reportCacheHitsTotal
}

// CommentsLoaded exposes the counter for lazy comment fetches.
func CommentsLoaded() prometheus.Counter {
	RegisterMetrics()
	return upstreamCommentsLoad
}
