package service

import (
	"errors"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_chat_requests_total",
			Help: "Total number of validated chat requests, by language and outcome",
		},
		[]string{"lang", "outcome"},
	)

	chatRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aarogya_chat_rejected_total",
			Help: "Total number of chat requests rejected during validation",
		},
	)

	chatStageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aarogya_chat_stage_failures_total",
			Help: "Total number of pipeline stage failures, by stage",
		},
		[]string{"stage"},
	)

	chatDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aarogya_chat_duration_seconds",
			Help:    "End-to-end chat pipeline duration in seconds, fallback included",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
		},
		[]string{"outcome"},
	)
)

func recordChat(lang catalog.Code, outcome Outcome, duration time.Duration) {
	chatRequestsTotal.WithLabelValues(string(lang), outcome.String()).Inc()
	chatDuration.WithLabelValues(outcome.String()).Observe(duration.Seconds())
}

func recordStageFailure(err error) {
	stage := "unknown"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage.String()
	}
	chatStageFailuresTotal.WithLabelValues(stage).Inc()
}
