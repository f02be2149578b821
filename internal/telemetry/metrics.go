package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ReportsTriggered = prometheus.NewCounter(prometheus.CounterOpts{Name: "reports_triggered_total", Help: "Report jobs created"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "reports_rate_limit_rejects_total", Help: "Report triggers rejected by rate limiter"})
	ReportsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "reports_completed_total", Help: "Report jobs completed"})
	ReportsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "reports_failed_total", Help: "Report jobs failed"})
	LeasesExpired    = prometheus.NewCounter(prometheus.CounterOpts{Name: "reports_lease_expired_total", Help: "Report jobs failed because their worker lease expired"})
	StoresProcessed  = prometheus.NewCounter(prometheus.CounterOpts{Name: "report_stores_processed_total", Help: "Stores included in a report"})
	StoresSkipped    = prometheus.NewCounter(prometheus.CounterOpts{Name: "report_stores_skipped_total", Help: "Stores omitted from a report after an error"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "reports_queue_depth", Help: "Report jobs waiting for a worker"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "reports_inflight", Help: "Report jobs currently running"})
	ReportDuration   = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_duration_seconds",
		Help:    "Wall time to compute and store one report",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ReportsTriggered,
			RateLimitRejects,
			ReportsCompleted,
			ReportsFailed,
			LeasesExpired,
			StoresProcessed,
			StoresSkipped,
			QueueDepthGauge,
			InFlightGauge,
			ReportDuration,
		)
	})
	return promhttp.Handler()
}
