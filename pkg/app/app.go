// Package app assembles the chat pipeline from configuration. The server,
// Lambda and test binaries share it.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/dasmlab/aarogya/pkg/config"
	"github.com/dasmlab/aarogya/pkg/generate"
	"github.com/dasmlab/aarogya/pkg/service"
	"github.com/dasmlab/aarogya/pkg/translate"
	"github.com/sirupsen/logrus"
)

// App holds the wired pipeline components.
type App struct {
	Config       config.Config
	Catalog      *catalog.Catalog
	Registry     *translate.Registry
	Stage        *generate.Stage
	Orchestrator *service.Orchestrator
	Logger       *logrus.Logger
}

type buildOptions struct {
	lambdaClient translate.LambdaInvoker
	engine       generate.Engine
	factory      translate.Factory
}

// Option customizes how New builds the pipeline.
type Option func(*buildOptions)

// WithLambdaClient injects the AWS Lambda client used by the lambda engine.
func WithLambdaClient(client translate.LambdaInvoker) Option {
	return func(o *buildOptions) { o.lambdaClient = client }
}

// WithGenerationEngine replaces the configured generation engine. The
// breaker is still applied when enabled.
func WithGenerationEngine(engine generate.Engine) Option {
	return func(o *buildOptions) { o.engine = engine }
}

// WithTranslatorFactory replaces the configured translation engine.
func WithTranslatorFactory(f translate.Factory) Option {
	return func(o *buildOptions) { o.factory = f }
}

// NewLogger builds the process logger from the log settings. An invalid
// level falls back to info with a warning.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// New wires catalog, translator registry, generation stage and orchestrator.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		loaded, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	logger.WithFields(logrus.Fields{
		"languages":  cat.Codes(),
		"directions": len(cat.Directions()),
		"file":       cfg.CatalogFile,
	}).Info("Language catalog loaded")

	factory := bo.factory
	if factory == nil {
		engineType, err := translate.ParseEngineType(cfg.Translate.Engine)
		if err != nil {
			return nil, err
		}
		factory, err = translate.NewFactory(ctx, translate.Config{
			Engine:  engineType,
			BaseURL: cfg.Translate.URL,
			Python: translate.PythonOptions{
				Python: cfg.Translate.Python,
				Script: cfg.Translate.Script,
			},
			LambdaPrefix: cfg.Translate.LambdaPrefix,
			LambdaClient: bo.lambdaClient,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create translator factory: %w", err)
		}
	}
	registry := translate.NewRegistry(cat, factory,
		translate.WithMaxLength(cfg.Translate.MaxLength),
		translate.WithLogger(logger),
	)

	var breaker *generate.BreakerSettings
	if cfg.Breaker.Enabled {
		breaker = &generate.BreakerSettings{
			Name:        "generation",
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}
	}

	engine := bo.engine
	if engine == nil {
		engineType, err := generate.ParseEngineType(cfg.Generate.Engine)
		if err != nil {
			return nil, err
		}
		engine, err = generate.NewEngine(ctx, generate.Options{
			Engine:  engineType,
			Model:   cfg.Generate.Model,
			BaseURL: cfg.Generate.BaseURL,
			APIKey:  cfg.Generate.APIKey,
			Breaker: breaker,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create generation engine: %w", err)
		}
	} else if breaker != nil {
		engine = generate.NewBreaker(engine, *breaker, logger)
	}
	stage := generate.NewStage(engine, logger)

	maxNewTokens := cfg.Generate.MaxNewTokens
	if maxNewTokens <= 0 {
		maxNewTokens = generate.DefaultMaxNewTokens
	}
	primary := generate.Primary()
	primary.MaxNewTokens = maxNewTokens
	primary.Temperature = cfg.Generate.Temperature
	primary.TopP = cfg.Generate.TopP
	reduced := generate.Reduced()
	reduced.MaxNewTokens = maxNewTokens

	orchestrator := service.NewOrchestrator(cat, registry, stage,
		service.WithLogger(logger),
		service.WithPrimaryConfig(primary),
		service.WithReducedConfig(reduced),
		service.WithTimeout(cfg.ChatTimeout),
	)

	return &App{
		Config:       cfg,
		Catalog:      cat,
		Registry:     registry,
		Stage:        stage,
		Orchestrator: orchestrator,
		Logger:       logger,
	}, nil
}

// Preload instantiates a translator for every catalog direction.
func (a *App) Preload(ctx context.Context) error {
	dirs := a.Catalog.Directions()
	a.Logger.WithField("directions", len(dirs)).Info("Preloading translators")
	if err := a.Registry.Preload(ctx, dirs...); err != nil {
		return fmt.Errorf("preload translators: %w", err)
	}
	return nil
}

// Close releases translator handles.
func (a *App) Close() error {
	if a.Registry == nil {
		return nil
	}
	return a.Registry.Close()
}
