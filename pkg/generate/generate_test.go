package generate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPrimaryAndReducedConfigs(t *testing.T) {
	p := Primary()
	assert.True(t, p.Sample)
	assert.Equal(t, 200, p.MaxNewTokens)
	assert.InDelta(t, 0.8, p.Temperature, 1e-9)
	assert.InDelta(t, 0.9, p.TopP, 1e-9)

	r := Reduced()
	assert.False(t, r.Sample)
	assert.Equal(t, 200, r.MaxNewTokens)
	assert.Zero(t, r.Temperature)
	assert.Zero(t, r.TopP)
}

func TestStageReturnsTrimmedFirstCandidate(t *testing.T) {
	var seen Config
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		seen = cfg
		return []string{"  first answer \n", "second"}, nil
	})

	stage := NewStage(engine, quietLogger())
	out, err := stage.Generate(context.Background(), "prompt", Primary())
	require.NoError(t, err)
	assert.Equal(t, "first answer", out)
	assert.Equal(t, Primary(), seen)
}

func TestStageWrapsEngineError(t *testing.T) {
	boom := errors.New("out of memory")
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		return nil, boom
	})

	_, err := NewStage(engine, quietLogger()).Generate(context.Background(), "prompt", Primary())
	require.Error(t, err)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestStageNoCandidates(t *testing.T) {
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		return []string{}, nil
	})

	_, err := NewStage(engine, quietLogger()).Generate(context.Background(), "prompt", Reduced())
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestStageNeverRetries(t *testing.T) {
	var calls atomic.Int32
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("fail")
	})

	_, err := NewStage(engine, quietLogger()).Generate(context.Background(), "prompt", Primary())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// chatServer fakes an OpenAI-compatible endpoint and captures the request body.
func chatServer(t *testing.T, captured *map[string]any, contents ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body := map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*captured = body

		choices := make([]map[string]any, 0, len(contents))
		for i, c := range contents {
			choices = append(choices, map[string]any{
				"index":         i,
				"message":       map[string]any{"role": "assistant", "content": c},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   body["model"],
			"choices": choices,
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestOpenAIEngineSendsSamplingParameters(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, &body, "Drink fluids and rest.")
	defer srv.Close()

	engine := NewOpenAIEngine(OpenAIOptions{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "flan"}, quietLogger())
	out, err := engine.Generate(context.Background(), "What helps a fever?", Primary())
	require.NoError(t, err)
	assert.Equal(t, []string{"Drink fluids and rest."}, out)

	assert.Equal(t, "flan", body["model"])
	assert.InDelta(t, 0.8, body["temperature"], 1e-6)
	assert.InDelta(t, 0.9, body["top_p"], 1e-6)
	assert.InDelta(t, 200, body["max_tokens"], 1e-9)

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "What helps a fever?", msg["content"])
}

func TestOpenAIEngineReducedOmitsSampling(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, &body, "a", "b")
	defer srv.Close()

	engine := NewOpenAIEngine(OpenAIOptions{BaseURL: srv.URL + "/v1"}, quietLogger())
	out, err := engine.Generate(context.Background(), "prompt", Reduced())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	assert.Equal(t, DefaultModel, body["model"])
	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "top_p")
	assert.InDelta(t, 200, body["max_tokens"], 1e-9)
}

func TestOpenAIEngineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"model loading","type":"server_error"}}`))
	}))
	defer srv.Close()

	engine := NewOpenAIEngine(OpenAIOptions{BaseURL: srv.URL + "/v1"}, quietLogger())
	_, err := engine.Generate(context.Background(), "prompt", Primary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAI API error")
}

func TestGeminiEngine(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Rest "},{"text":"well."}]}}]}`))
	}))
	defer srv.Close()

	engine, err := NewGeminiEngine(context.Background(), GeminiOptions{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-test",
	}, quietLogger())
	require.NoError(t, err)

	out, err := engine.Generate(context.Background(), "prompt", Primary())
	require.NoError(t, err)
	assert.Equal(t, []string{"Rest well."}, out)

	gc, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 200, gc["maxOutputTokens"], 1e-9)
	assert.InDelta(t, 0.8, gc["temperature"], 1e-6)
	assert.InDelta(t, 0.9, gc["topP"], 1e-6)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("backend down")
	})

	b := NewBreaker(engine, BreakerSettings{Name: "test-open", MaxFailures: 2, OpenTimeout: time.Minute}, quietLogger())
	for i := 0; i < 2; i++ {
		_, err := b.Generate(context.Background(), "prompt", Primary())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Generate(context.Background(), "prompt", Primary())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		return nil, context.Canceled
	})

	b := NewBreaker(engine, BreakerSettings{Name: "test-cancel", MaxFailures: 1}, quietLogger())
	for i := 0; i < 3; i++ {
		_, err := b.Generate(context.Background(), "prompt", Primary())
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesCandidates(t *testing.T) {
	engine := EngineFunc(func(ctx context.Context, prompt string, cfg Config) ([]string, error) {
		return []string{"ok"}, nil
	})

	b := NewBreaker(engine, BreakerSettings{}, quietLogger())
	out, err := b.Generate(context.Background(), "prompt", Reduced())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, out)
}

func TestParseEngineType(t *testing.T) {
	tests := []struct {
		in      string
		want    EngineType
		wantErr bool
	}{
		{"openai", EngineOpenAI, false},
		{"", EngineOpenAI, false},
		{"Gemini", EngineGemini, false},
		{"genai", EngineGemini, false},
		{"llama", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEngineType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEngine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEngineWrapsBreaker(t *testing.T) {
	engine, err := NewEngine(context.Background(), Options{
		Engine:  EngineOpenAI,
		BaseURL: "http://127.0.0.1:1/v1",
		Breaker: &BreakerSettings{Name: "test-factory"},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	_, ok := engine.(*BreakerEngine)
	assert.True(t, ok)

	_, err = NewEngine(context.Background(), Options{Engine: "llama", Logger: quietLogger()})
	assert.ErrorIs(t, err, ErrUnknownEngine)
}
