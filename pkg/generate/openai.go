package generate

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// DefaultModel is the instruction-tuned model served behind the
// OpenAI-compatible endpoint by default.
const DefaultModel = "google/flan-t5-large"

// OpenAIOptions configures an OpenAI-compatible engine. BaseURL lets the
// engine talk to self-hosted servers (vLLM, TGI) as well as OpenAI itself.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIEngine generates text through the chat completions API.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

// NewOpenAIEngine creates an engine from opts.
func NewOpenAIEngine(opts OpenAIOptions, logger *logrus.Logger) *OpenAIEngine {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		logger: logger,
	}
}

// Generate sends prompt as a single user message.
func (e *OpenAIEngine) Generate(ctx context.Context, prompt string, cfg Config) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: cfg.MaxNewTokens,
	}
	if cfg.Sample {
		req.Temperature = float32(cfg.Temperature)
		req.TopP = float32(cfg.TopP)
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"model":             e.model,
		"choices":           len(resp.Choices),
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Chat completion received")

	candidates := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		candidates = append(candidates, choice.Message.Content)
	}
	return candidates, nil
}
