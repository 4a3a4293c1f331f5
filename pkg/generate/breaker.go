package generate

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker around an engine.
type BreakerSettings struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerEngine fails fast while the wrapped engine keeps failing. An open
// breaker surfaces gobreaker.ErrOpenState as the generation error.
type BreakerEngine struct {
	engine Engine
	cb     *gobreaker.CircuitBreaker
}

// NewBreaker wraps engine in a circuit breaker.
func NewBreaker(engine Engine, s BreakerSettings, logger *logrus.Logger) *BreakerEngine {
	if logger == nil {
		logger = logrus.New()
	}
	if s.Name == "" {
		s.Name = "generation"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}

	breakerState.WithLabelValues(s.Name).Set(float64(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		// Caller cancellations say nothing about engine health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Generation circuit breaker changed state")
		},
	}

	return &BreakerEngine{
		engine: engine,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate forwards to the wrapped engine unless the breaker is open.
func (b *BreakerEngine) Generate(ctx context.Context, prompt string, cfg Config) ([]string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.engine.Generate(ctx, prompt, cfg)
	})
	if err != nil {
		return nil, err
	}
	candidates, _ := out.([]string)
	return candidates, nil
}

// State reports the breaker state.
func (b *BreakerEngine) State() gobreaker.State {
	return b.cb.State()
}
