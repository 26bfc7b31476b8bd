// Wardend is a misinformation verification daemon.
//
// The binary starts the wardend HTTP server with full service initialization:
// SQLite persistence, the chromem similarity index, the LLM analysis
// provider, and the public API.
//
// Configuration is loaded from ~/.config/wardend/config.yaml with WARDEND_*
// environment overrides. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	wardend
//
//	# Configure via environment
//	WARDEND_SERVER_PORT=9090 WARDEND_ANALYSIS_PROVIDER=anthropic wardend
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/analysis"
	"github.com/fyrsmithlabs/wardend/internal/cluster"
	"github.com/fyrsmithlabs/wardend/internal/config"
	"github.com/fyrsmithlabs/wardend/internal/embeddings"
	"github.com/fyrsmithlabs/wardend/internal/httpapi"
	"github.com/fyrsmithlabs/wardend/internal/logging"
	"github.com/fyrsmithlabs/wardend/internal/services"
	"github.com/fyrsmithlabs/wardend/internal/similarity"
	"github.com/fyrsmithlabs/wardend/internal/store"
	"github.com/fyrsmithlabs/wardend/internal/telemetry"
	"github.com/fyrsmithlabs/wardend/internal/views"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  wardend           Start the wardend daemon\n")
			fmt.Fprintf(os.Stderr, "  wardend version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("wardend by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the wardend server and blocks until context cancellation.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Open infrastructure (store, embeddings, similarity index)
//  4. Build business services (analysis, submission pipeline, views)
//  5. Start the HTTP server
//  6. Graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync(logger)

	httpapi.Version = version

	logger.Info("Starting wardend",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Analysis.Provider),
		zap.Duration("shutdown_timeout", time.Duration(cfg.Server.ShutdownTimeout)))

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if tel.IsEnabled() {
		logger.Info("Telemetry enabled",
			zap.String("endpoint", cfg.Telemetry.Endpoint),
			zap.Float64("sampling_rate", cfg.Telemetry.Sampling.Rate))
	}

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info("Dependencies initialized",
		zap.Bool("store_ready", deps.store != nil),
		zap.Bool("similarity_ready", deps.index != nil))

	registry, err := initServices(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	srv, err := httpapi.NewServer(registry.Submissions(), registry.Views(), logger, &httpapi.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigin:    cfg.Server.CORSOrigin,
		RatePerMinute: cfg.Server.RatePerMinute,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	store  *store.SQLite
	embed  *embeddings.Service
	index  *similarity.Index
	logger *zap.Logger
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.logger != nil {
		logging.Sync(d.logger)
	}
}

// initDependencies opens the store, the embedding client, and the similarity
// index.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	storePath, err := config.ExpandPath(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}
	st, err := store.NewSQLite(storePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	embedSvc, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	logger.Info("Embedding service initialized",
		zap.String("base_url", cfg.Embeddings.BaseURL),
		zap.String("model", cfg.Embeddings.Model))

	indexPath, err := config.ExpandPath(cfg.Similarity.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving index path: %w", err)
	}
	index, err := similarity.New(similarity.Config{
		Path:          indexPath,
		Collection:    cfg.Similarity.Collection,
		MaxMatches:    cfg.Similarity.MaxMatches,
		MinSimilarity: cfg.Similarity.MinSimilarity,
	}, embedSvc, st, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open similarity index: %w", err)
	}

	logger.Info("Similarity index initialized",
		zap.String("path", indexPath),
		zap.String("collection", cfg.Similarity.Collection))

	return &dependencies{
		store:  st,
		embed:  embedSvc,
		index:  index,
		logger: logger,
	}, nil
}

// initServices builds the business services on top of the dependencies.
func initServices(cfg *config.Config, deps *dependencies, logger *zap.Logger) (services.Registry, error) {
	provider := cfg.Analysis.Providers[cfg.Analysis.Provider]
	completer, err := analysis.NewCompleter(cfg.Analysis.Provider, analysis.ProviderOptions{
		APIKey:  provider.APIKey.Value(),
		BaseURL: provider.BaseURL,
		Model:   provider.Model,
		Timeout: time.Duration(cfg.Analysis.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis provider: %w", err)
	}

	analysisSvc, err := analysis.NewService(completer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis service: %w", err)
	}

	manager, err := cluster.NewManager(analysisSvc)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster manager: %w", err)
	}

	submissions, err := cluster.NewService(analysisSvc, analysisSvc, manager, deps.index, deps.store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission service: %w", err)
	}

	viewSvc, err := views.NewService(deps.store, views.Config{
		DefaultPeriod: cfg.Views.TrendingDefaultPeriod,
		CacheTTL:      time.Duration(cfg.Views.CacheTTL),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create views service: %w", err)
	}

	return services.NewRegistry(services.Options{
		Submissions: submissions,
		Views:       viewSvc,
		Store:       deps.store,
		Similarity:  deps.index,
	}), nil
}
