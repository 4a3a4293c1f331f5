// Package generate wraps the text-generation capability behind a single
// Stage that turns a prompt and a sampling configuration into an answer.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxNewTokens bounds generated answers.
const DefaultMaxNewTokens = 200

// Config controls one generation call.
type Config struct {
	// MaxNewTokens is an upper bound on produced length.
	MaxNewTokens int
	// Sample enables stochastic decoding. When false, Temperature and TopP
	// are not sent and the engine's default decoding applies.
	Sample bool
	// Temperature controls randomness when Sample is set.
	Temperature float64
	// TopP is the nucleus-sampling cutoff when Sample is set.
	TopP float64
}

// Primary is the sampling configuration used on the normal path.
func Primary() Config {
	return Config{
		MaxNewTokens: DefaultMaxNewTokens,
		Sample:       true,
		Temperature:  0.8,
		TopP:         0.9,
	}
}

// Reduced is the fallback configuration: a length cap and nothing else.
func Reduced() Config {
	return Config{MaxNewTokens: DefaultMaxNewTokens}
}

// Engine is a text-generation capability. It returns the candidate texts
// produced for prompt, best first.
type Engine interface {
	Generate(ctx context.Context, prompt string, cfg Config) ([]string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, prompt string, cfg Config) ([]string, error)

// Generate calls f.
func (f EngineFunc) Generate(ctx context.Context, prompt string, cfg Config) ([]string, error) {
	return f(ctx, prompt, cfg)
}

// ErrNoCandidates is the cause when an engine returns no candidate text.
var ErrNoCandidates = errors.New("generation returned no candidates")

// FailedError reports a failed generation call.
type FailedError struct {
	Cause error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}

// Stage invokes an Engine and normalizes its output. It never retries.
type Stage struct {
	engine Engine
	logger *logrus.Logger
}

// NewStage creates a generation stage over engine.
func NewStage(engine Engine, logger *logrus.Logger) *Stage {
	if logger == nil {
		logger = logrus.New()
	}
	return &Stage{engine: engine, logger: logger}
}

// Generate returns the trimmed first candidate for prompt. Engine errors and
// empty candidate lists are returned as *FailedError.
func (s *Stage) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	startTime := time.Now()
	candidates, err := s.engine.Generate(ctx, prompt, cfg)
	if err == nil && len(candidates) == 0 {
		err = ErrNoCandidates
	}
	duration := time.Since(startTime)
	recordGeneration(cfg, duration, err == nil)

	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"sample":      cfg.Sample,
			"duration_ms": duration.Milliseconds(),
		}).Warn("Generation failed")
		return "", &FailedError{Cause: err}
	}

	s.logger.WithFields(logrus.Fields{
		"sample":      cfg.Sample,
		"candidates":  len(candidates),
		"duration_ms": duration.Milliseconds(),
	}).Debug("Generation completed")

	return strings.TrimSpace(candidates[0]), nil
}
