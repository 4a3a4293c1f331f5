package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiOptions configures the Gemini engine.
type GeminiOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GeminiEngine generates text with the Gemini API.
type GeminiEngine struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

// NewGeminiEngine creates a Gemini client.
func NewGeminiEngine(ctx context.Context, opts GeminiOptions, logger *logrus.Logger) (*GeminiEngine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: opts.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiEngine{client: client, model: opts.Model, logger: logger}, nil
}

// Generate returns the text of every candidate Gemini produced.
func (e *GeminiEngine) Generate(ctx context.Context, prompt string, cfg Config) ([]string, error) {
	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(cfg.MaxNewTokens),
	}
	if cfg.Sample {
		gc.Temperature = genai.Ptr(float32(cfg.Temperature))
		gc.TopP = genai.Ptr(float32(cfg.TopP))
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), gc)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	candidates := make([]string, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range c.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		candidates = append(candidates, sb.String())
	}

	e.logger.WithFields(logrus.Fields{
		"model":      e.model,
		"candidates": len(candidates),
	}).Debug("Gemini content received")

	return candidates, nil
}
