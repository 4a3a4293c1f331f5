package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// EngineType selects a generation backend.
type EngineType string

const (
	// EngineOpenAI talks to any OpenAI-compatible chat completions endpoint.
	EngineOpenAI EngineType = "openai"
	// EngineGemini uses the Gemini API.
	EngineGemini EngineType = "gemini"
)

// ErrUnknownEngine is returned for an unrecognized engine name.
var ErrUnknownEngine = errors.New("unknown generation engine")

// ParseEngineType maps a configuration string to an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "":
		return EngineOpenAI, nil
	case "gemini", "genai":
		return EngineGemini, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
	}
}

// Options selects and configures a generation engine.
type Options struct {
	Engine  EngineType
	Model   string
	BaseURL string
	APIKey  string

	// Breaker wraps the engine in a circuit breaker when non-nil.
	Breaker *BreakerSettings

	Logger *logrus.Logger
}

// NewEngine builds the engine described by opts.
func NewEngine(ctx context.Context, opts Options) (Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	var engine Engine
	switch opts.Engine {
	case EngineOpenAI, "":
		engine = NewOpenAIEngine(OpenAIOptions{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
		}, logger)
	case EngineGemini:
		g, err := NewGeminiEngine(ctx, GeminiOptions{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
		}, logger)
		if err != nil {
			return nil, err
		}
		engine = g
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
	}

	logger.WithFields(logrus.Fields{
		"engine":   opts.Engine,
		"model":    opts.Model,
		"base_url": opts.BaseURL,
		"breaker":  opts.Breaker != nil,
	}).Info("Generation engine configured")

	if opts.Breaker != nil {
		return NewBreaker(engine, *opts.Breaker, logger), nil
	}
	return engine, nil
}
