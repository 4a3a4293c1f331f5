package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/aarogya/pkg/app"
	"github.com/dasmlab/aarogya/pkg/config"
	"github.com/dasmlab/aarogya/pkg/server"
	"github.com/dasmlab/aarogya/pkg/service"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "aarogya-server",
		Short: "Multilingual health question answering service",
		Long: `aarogya-server answers health questions in English, Hindi and Punjabi.

Questions are translated to English, answered by a text-generation model
behind a safety preamble, and translated back to the caller's language.

Examples:
  aarogya-server
  aarogya-server --config aarogya.yaml
  aarogya-server --translate-engine libretranslate --translate-url http://mt:5000
  AAROGYA_GENERATE_BASE_URL=http://vllm:8000/v1 aarogya-server`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			used, err := config.ReadFile(v, cfgFile)
			if err != nil {
				return err
			}
			cfg := config.FromViper(v)
			logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
			if used != "" {
				logger.WithField("file", used).Info("Using config file")
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./aarogya.yaml)")
	setupFlags(cmd.Flags())
	bindFlags(v, cmd.Flags())
	return cmd
}

func setupFlags(fs *pflag.FlagSet) {
	fs.Int("http-port", 5000, "HTTP server port")
	fs.Int("grpc-port", 50051, "gRPC server port")
	fs.Bool("grpc", true, "Serve the gRPC ChatService")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.String("catalog", "", "Language catalog YAML file (default: built-in en/hi/pa)")

	fs.String("translate-engine", "python", "Translation engine: python, libretranslate, argos or lambda")
	fs.String("translate-url", "http://localhost:5001", "Base URL for HTTP translation engines")
	fs.String("translate-python", "python3", "Python interpreter for the MarianMT worker")
	fs.String("translate-script", "", "MarianMT worker script (default: embedded worker)")
	fs.String("translate-lambda-prefix", "aarogya-translator", "Translator Lambda function name prefix")
	fs.Bool("preload", false, "Load every translator at startup")

	fs.String("generate-engine", "openai", "Generation engine: openai or gemini")
	fs.String("generate-model", "google/flan-t5-large", "Generation model name")
	fs.String("generate-base-url", "", "OpenAI-compatible endpoint (e.g. a vLLM server)")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	bindings := map[string]string{
		"http.port":               "http-port",
		"grpc.port":               "grpc-port",
		"grpc.enabled":            "grpc",
		"log.level":               "log-level",
		"log.format":              "log-format",
		"catalog.file":            "catalog",
		"translate.engine":        "translate-engine",
		"translate.url":           "translate-url",
		"translate.python":        "translate-python",
		"translate.script":        "translate-script",
		"translate.lambda_prefix": "translate-lambda-prefix",
		"translate.preload":       "preload",
		"generate.engine":         "generate-engine",
		"generate.model":          "generate-model",
		"generate.base_url":       "generate-base-url",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"http_port":        cfg.HTTPPort,
		"grpc_port":        cfg.GRPCPort,
		"grpc_enabled":     cfg.GRPCEnabled,
		"translate_engine": cfg.Translate.Engine,
		"generate_engine":  cfg.Generate.Engine,
		"generate_model":   cfg.Generate.Model,
		"log_level":        logger.GetLevel().String(),
	}).Info("Starting Aarogya server")

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close translators")
		}
	}()

	if cfg.Translate.Preload {
		preloadCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		err := a.Preload(preloadCtx)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Translator preload failed, directions will load on first use")
		}
	}

	errChan := make(chan error, 2)

	httpServer := server.NewHTTPServer(a.Orchestrator, a.Registry, logger, cfg.HTTPPort)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if cfg.GRPCEnabled {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen on port %d: %w", cfg.GRPCPort, err)
		}

		grpcServer = newGRPCServer(logger)

		healthServer = health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(service.ChatServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		service.RegisterChatServer(grpcServer, service.NewChatService(a.Orchestrator, logger))

		// Enable reflection for grpcurl/debugging
		reflection.Register(grpcServer)

		go func() {
			logger.WithFields(logrus.Fields{
				"port": cfg.GRPCPort,
			}).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.WithError(runErr).Error("Server error")
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if healthServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(service.ChatServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			grpcServer.Stop()
		}
	}

	return runErr
}

func newGRPCServer(logger *logrus.Logger) *grpc.Server {
	var opts []grpc.ServerOption

	opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
		MinTime:             15 * time.Second,
		PermitWithoutStream: true,
	}))
	opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle:     5 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Second,
		Time:                  30 * time.Second,
		Timeout:               10 * time.Second,
	}))
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))

	logger.WithFields(logrus.Fields{
		"min_time":            "15s",
		"max_connection_idle": "5m",
		"max_connection_age":  "30m",
	}).Debug("Configured gRPC server keepalive settings")

	return grpc.NewServer(opts...)
}

func loggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Debug("[gRPC] call failed")
		} else {
			entry.Debug("[gRPC] call completed")
		}
		return resp, err
	}
}
