package generate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_generation_requests_total",
			Help: "Total number of generation calls, by decoding mode and status",
		},
		[]string{"mode", "status"},
	)

	generationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aarogya_generation_duration_seconds",
			Help:    "Duration of generation calls in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"mode", "status"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aarogya_generation_breaker_state",
			Help: "Circuit breaker state around the generation engine (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

func recordGeneration(cfg Config, duration time.Duration, success bool) {
	mode := "default"
	if cfg.Sample {
		mode = "sample"
	}
	status := "success"
	if !success {
		status = "error"
	}
	generationRequestsTotal.WithLabelValues(mode, status).Inc()
	generationRequestDuration.WithLabelValues(mode, status).Observe(duration.Seconds())
}
