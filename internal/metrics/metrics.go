package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	compressionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsqueeze",
			Name:      "compression_runs_total",
			Help:      "Total compression runs by tolerance profile and result",
		},
		[]string{"tolerance", "result"},
	)

	compressionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfsqueeze",
			Name:      "compression_duration_seconds",
			Help:      "Duration of compression runs by content class",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"class"},
	)

	searchAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfsqueeze",
			Name:      "search_attempts",
			Help:      "Grid search attempts consumed per run by tolerance profile",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 10},
		},
		[]string{"tolerance"},
	)

	bytesSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfsqueeze",
			Name:      "bytes_saved_total",
			Help:      "Cumulative bytes removed across successful compression runs",
		},
	)

	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsqueeze",
			Name:      "jobs_processed_total",
			Help:      "Jobs processed by result (success, failed, dlq, cancelled)",
		},
		[]string{"result"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfsqueeze",
			Name:      "retries_total",
			Help:      "Total number of job retries",
		},
	)

	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsqueeze",
			Name:      "office_conversions_total",
			Help:      "Office-to-PDF conversions by result",
		},
		[]string{"result"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pdfsqueeze",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(compressionRuns, compressionDuration, searchAttempts, bytesSaved, jobsProcessed, retriesTotal, conversions, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveCompression records one finished compression run.
func ObserveCompression(tolerance, class, result string, attempts int, saved int64, dur time.Duration) {
	compressionRuns.WithLabelValues(tolerance, result).Inc()
	compressionDuration.WithLabelValues(class).Observe(dur.Seconds())
	searchAttempts.WithLabelValues(tolerance).Observe(float64(attempts))
	if saved > 0 {
		bytesSaved.Add(float64(saved))
	}
}

func IncProcessed(result string) { jobsProcessed.WithLabelValues(result).Inc() }
func IncRetry()                  { retriesTotal.Inc() }

func IncConversion(result string) { conversions.WithLabelValues(result).Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
