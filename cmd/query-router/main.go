package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/geolens-ai/query-router/internal/config"
	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/inventory"
	"github.com/geolens-ai/query-router/internal/routing"
	"github.com/geolens-ai/query-router/internal/server"
)

// Application wires configuration, the routing engine, and the HTTP server.
type Application struct {
	config *config.Config
	store  *domain.Store
	engine *routing.Engine
	server *server.Server
	logger *logrus.Logger
}

// NewApplication creates a new application instance.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	store, err := domain.NewStore(cfg.DomainConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain configuration: %w", err)
	}

	inv := inventory.New(store.Snapshot().Inventory, logger)

	var similarity routing.SimilarityClient
	var enhancer *routing.SemanticEnhancer
	if cfg.Engine.Semantic.Enabled {
		client := routing.NewHTTPSimilarityClient(cfg.Engine.Semantic.URL, cfg.Engine.Semantic.Timeout, logger)
		enhancer, err = routing.NewSemanticEnhancer(client, cfg.Engine.Semantic.BlendWeight, cfg.Engine.Semantic.Timeout, cfg.Engine.Semantic.CacheSize, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure semantic enhancement: %w", err)
		}
		similarity = client
		logger.WithField("url", cfg.Engine.Semantic.URL).Info("Semantic enhancement enabled")
	}

	engine := routing.NewEngine(store, inv, enhancer, cfg.ToEngineOptions(), logger)

	serverInstance, err := server.NewServer(engine, store, inv, similarity, cfg.ToServerConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		store:  store,
		engine: engine,
		server: serverInstance,
		logger: logger,
	}, nil
}

// Run starts the application and blocks until shutdown.
func (app *Application) Run() error {
	app.logger.Info("Starting query router")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	app.logger.Info("Starting graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// setupLogger configures the logger based on configuration.
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	switch config.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// printUsage prints application usage information.
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_PORT            Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_LOG_LEVEL       Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_LOG_FORMAT      Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_DOMAIN_CONFIG   Path to the domain configuration document\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_SIMILARITY_URL  Semantic similarity service URL\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_API_KEYS        Comma-separated API keys\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_ADMIN_KEYS      Comma-separated admin API keys\n")
	fmt.Fprintf(os.Stderr, "  QUERY_ROUTER_JWT_SECRET      JWT signing secret\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
}

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}
	if *version {
		fmt.Printf("Query Router v1.0.0\n")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
