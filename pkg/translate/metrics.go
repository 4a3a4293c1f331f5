package translate

import (
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	translatorInstantiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_translator_instantiations_total",
			Help: "Number of translation handles instantiated, by direction and status",
		},
		[]string{"direction", "status"},
	)

	translatorInstantiationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aarogya_translator_instantiation_duration_seconds",
			Help:    "Time spent instantiating a translation handle",
			Buckets: []float64{0.01, 0.1, 1.0, 5.0, 15.0, 30.0, 60.0, 120.0},
		},
		[]string{"direction"},
	)

	translatorHandlesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aarogya_translator_handles_loaded",
			Help: "Number of translation handles currently cached",
		},
	)

	translationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_translation_requests_total",
			Help: "Total number of translation requests that reached a handle",
		},
		[]string{"direction", "status"},
	)

	translationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aarogya_translation_duration_seconds",
			Help:    "Duration of translation requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"direction", "status"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func recordInstantiation(dir catalog.Direction, duration time.Duration, success bool) {
	translatorInstantiationsTotal.WithLabelValues(dir.String(), statusLabel(success)).Inc()
	if success {
		translatorInstantiationDuration.WithLabelValues(dir.String()).Observe(duration.Seconds())
		translatorHandlesLoaded.Inc()
	}
}

func recordTranslation(dir catalog.Direction, duration time.Duration, success bool) {
	status := statusLabel(success)
	translationRequestsTotal.WithLabelValues(dir.String(), status).Inc()
	translationRequestDuration.WithLabelValues(dir.String(), status).Observe(duration.Seconds())
}
