package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := FromViper(New())

	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.True(t, cfg.GRPCEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.CatalogFile)

	assert.Equal(t, "python", cfg.Translate.Engine)
	assert.Equal(t, "python3", cfg.Translate.Python)
	assert.Equal(t, "aarogya-translator", cfg.Translate.LambdaPrefix)
	assert.Equal(t, 512, cfg.Translate.MaxLength)
	assert.False(t, cfg.Translate.Preload)

	assert.Equal(t, "openai", cfg.Generate.Engine)
	assert.Equal(t, "google/flan-t5-large", cfg.Generate.Model)
	assert.Equal(t, 200, cfg.Generate.MaxNewTokens)
	assert.InDelta(t, 0.8, cfg.Generate.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.Generate.TopP, 1e-9)
	assert.Empty(t, cfg.Generate.APIKey)

	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenTimeout)
	assert.Zero(t, cfg.ChatTimeout)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AAROGYA_HTTP_PORT", "8080")
	t.Setenv("AAROGYA_TRANSLATE_ENGINE", "lambda")
	t.Setenv("AAROGYA_GENERATE_TEMPERATURE", "0.3")
	t.Setenv("AAROGYA_CHAT_TIMEOUT", "45s")
	t.Setenv("AAROGYA_BREAKER_ENABLED", "false")

	cfg := FromViper(New())
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "lambda", cfg.Translate.Engine)
	assert.InDelta(t, 0.3, cfg.Generate.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.ChatTimeout)
	assert.False(t, cfg.Breaker.Enabled)
}

func TestAPIKeyFallsBackToProviderEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GEMINI_API_KEY", "gm-key")

	cfg := FromViper(New())
	assert.Equal(t, "sk-openai", cfg.Generate.APIKey)

	t.Setenv("AAROGYA_GENERATE_ENGINE", "gemini")
	cfg = FromViper(New())
	assert.Equal(t, "gm-key", cfg.Generate.APIKey)

	t.Setenv("AAROGYA_GENERATE_API_KEY", "explicit")
	cfg = FromViper(New())
	assert.Equal(t, "explicit", cfg.Generate.APIKey)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aarogya.yaml")
	data := `
http:
  port: 9000
grpc:
  enabled: false
translate:
  engine: libretranslate
  url: http://mt:5000
  preload: true
generate:
  engine: gemini
  model: gemini-test
  max_new_tokens: 128
breaker:
  max_failures: 2
  open_timeout: 1m
chat:
  timeout: 20s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, used, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.False(t, cfg.GRPCEnabled)
	assert.Equal(t, "libretranslate", cfg.Translate.Engine)
	assert.Equal(t, "http://mt:5000", cfg.Translate.URL)
	assert.True(t, cfg.Translate.Preload)
	assert.Equal(t, "gemini", cfg.Generate.Engine)
	assert.Equal(t, "gemini-test", cfg.Generate.Model)
	assert.Equal(t, 128, cfg.Generate.MaxNewTokens)
	assert.Equal(t, uint32(2), cfg.Breaker.MaxFailures)
	assert.Equal(t, time.Minute, cfg.Breaker.OpenTimeout)
	assert.Equal(t, 20*time.Second, cfg.ChatTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 512, cfg.Translate.MaxLength)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReadFileWithoutDefaultFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	used, err := ReadFile(New(), "")
	require.NoError(t, err)
	assert.Empty(t, used)
}
