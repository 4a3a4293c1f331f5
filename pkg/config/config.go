// Package config loads service configuration from flags, environment
// variables (AAROGYA_*) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable names: http.port is read
// from AAROGYA_HTTP_PORT.
const EnvPrefix = "AAROGYA"

// Config is the resolved service configuration.
type Config struct {
	HTTPPort    int
	GRPCPort    int
	GRPCEnabled bool

	LogLevel  string
	LogFormat string

	// CatalogFile is a YAML language catalog. Empty selects the built-in one.
	CatalogFile string

	Translate TranslateConfig
	Generate  GenerateConfig
	Breaker   BreakerConfig

	// ChatTimeout bounds a whole chat request. Zero disables it.
	ChatTimeout time.Duration
}

// TranslateConfig selects the translation engine.
type TranslateConfig struct {
	Engine       string
	URL          string
	Python       string
	Script       string
	LambdaPrefix string
	MaxLength    int
	// Preload instantiates every catalog direction at startup.
	Preload bool
}

// GenerateConfig selects the generation engine and its primary sampling.
type GenerateConfig struct {
	Engine       string
	Model        string
	BaseURL      string
	APIKey       string
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// BreakerConfig controls the circuit breaker around generation.
type BreakerConfig struct {
	Enabled     bool
	MaxFailures uint32
	OpenTimeout time.Duration
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 5000)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("catalog.file", "")

	v.SetDefault("translate.engine", "python")
	v.SetDefault("translate.url", "http://localhost:5001")
	v.SetDefault("translate.python", "python3")
	v.SetDefault("translate.script", "")
	v.SetDefault("translate.lambda_prefix", "aarogya-translator")
	v.SetDefault("translate.max_length", 512)
	v.SetDefault("translate.preload", false)

	v.SetDefault("generate.engine", "openai")
	v.SetDefault("generate.model", "google/flan-t5-large")
	v.SetDefault("generate.base_url", "")
	v.SetDefault("generate.api_key", "")
	v.SetDefault("generate.max_new_tokens", 200)
	v.SetDefault("generate.temperature", 0.8)
	v.SetDefault("generate.top_p", 0.9)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)

	v.SetDefault("chat.timeout", time.Duration(0))
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads cfgFile into v. With an empty cfgFile it looks for
// aarogya.yaml in the working directory and tolerates its absence. It
// returns the file used, if any.
func ReadFile(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("aarogya")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// FromViper resolves a Config from v.
func FromViper(v *viper.Viper) Config {
	cfg := Config{
		HTTPPort:    v.GetInt("http.port"),
		GRPCPort:    v.GetInt("grpc.port"),
		GRPCEnabled: v.GetBool("grpc.enabled"),
		LogLevel:    v.GetString("log.level"),
		LogFormat:   v.GetString("log.format"),
		CatalogFile: v.GetString("catalog.file"),
		Translate: TranslateConfig{
			Engine:       v.GetString("translate.engine"),
			URL:          v.GetString("translate.url"),
			Python:       v.GetString("translate.python"),
			Script:       v.GetString("translate.script"),
			LambdaPrefix: v.GetString("translate.lambda_prefix"),
			MaxLength:    v.GetInt("translate.max_length"),
			Preload:      v.GetBool("translate.preload"),
		},
		Generate: GenerateConfig{
			Engine:       v.GetString("generate.engine"),
			Model:        v.GetString("generate.model"),
			BaseURL:      v.GetString("generate.base_url"),
			APIKey:       v.GetString("generate.api_key"),
			MaxNewTokens: v.GetInt("generate.max_new_tokens"),
			Temperature:  v.GetFloat64("generate.temperature"),
			TopP:         v.GetFloat64("generate.top_p"),
		},
		Breaker: BreakerConfig{
			Enabled:     v.GetBool("breaker.enabled"),
			MaxFailures: v.GetUint32("breaker.max_failures"),
			OpenTimeout: v.GetDuration("breaker.open_timeout"),
		},
		ChatTimeout: v.GetDuration("chat.timeout"),
	}

	if cfg.Generate.APIKey == "" {
		cfg.Generate.APIKey = providerKey(cfg.Generate.Engine)
	}
	return cfg
}

// Load reads cfgFile (optional) and resolves the configuration.
func Load(cfgFile string) (Config, string, error) {
	v := New()
	used, err := ReadFile(v, cfgFile)
	if err != nil {
		return Config{}, "", err
	}
	return FromViper(v), used, nil
}

// providerKey falls back to the provider's conventional environment variable.
func providerKey(engine string) string {
	switch strings.ToLower(engine) {
	case "gemini", "genai":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}
