package translate

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/sirupsen/logrus"
)

// EngineType represents the type of translation engine to use.
type EngineType string

const (
	// EngineLibreTranslate uses a LibreTranslate server.
	EngineLibreTranslate EngineType = "libretranslate"
	// EngineArgos uses an Argos Translate HTTP service.
	EngineArgos EngineType = "argos"
	// EnginePython runs one local MarianMT worker process per direction.
	EnginePython EngineType = "python"
	// EngineLambda invokes one AWS Lambda translator function per direction.
	EngineLambda EngineType = "lambda"
)

// Config holds configuration for building a handle Factory.
type Config struct {
	// Engine specifies which translation engine backs the handles.
	Engine EngineType
	// BaseURL is the base URL for HTTP engines.
	BaseURL string
	// Python configures the subprocess engine.
	Python PythonOptions
	// LambdaPrefix prefixes translator function names.
	LambdaPrefix string
	// LambdaClient overrides the AWS client. When nil, the default AWS
	// configuration chain is loaded.
	LambdaClient LambdaInvoker
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewFactory returns a Factory that creates handles for cfg.Engine.
func NewFactory(ctx context.Context, cfg Config) (Factory, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"base_url": cfg.BaseURL,
	}).Info("Creating translator factory")

	switch cfg.Engine {
	case EngineLibreTranslate:
		return func(ctx context.Context, dir catalog.Direction, model string) (Handle, error) {
			client := NewLibreTranslateClient(cfg.BaseURL, dir, cfg.Logger)
			if err := client.CheckHealth(ctx); err != nil {
				return nil, err
			}
			return client, nil
		}, nil

	case EngineArgos:
		return func(ctx context.Context, dir catalog.Direction, model string) (Handle, error) {
			return NewArgosClient(cfg.BaseURL, dir, model, cfg.Logger), nil
		}, nil

	case EnginePython:
		return func(ctx context.Context, dir catalog.Direction, model string) (Handle, error) {
			return StartPythonTranslator(ctx, cfg.Python, dir, model, cfg.Logger)
		}, nil

	case EngineLambda:
		client := cfg.LambdaClient
		if client == nil {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			client = lambda.NewFromConfig(awsCfg)
		}
		return func(ctx context.Context, dir catalog.Direction, model string) (Handle, error) {
			return NewLambdaTranslator(client, cfg.LambdaPrefix, dir, model, cfg.Logger), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, cfg.Engine)
	}
}

// ParseEngineType parses a string into an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "libretranslate":
		return EngineLibreTranslate, nil
	case "argos":
		return EngineArgos, nil
	case "python", "marian":
		return EnginePython, nil
	case "lambda":
		return EngineLambda, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: libretranslate, argos, python, lambda)", ErrUnknownEngine, s)
	}
}
