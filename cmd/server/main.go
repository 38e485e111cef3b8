/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the incentive engine server.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve         Run the HTTP API (default when no command is given)
  count-tasks   Count an operator's valid tasks in a WMS export offline

STARTUP SEQUENCE (serve):
  1. Resolve configuration (flags > env > config file > defaults)
  2. Build the zap logger and, when an OTLP endpoint is set, the exporter
  3. Open the SQLite store and seed it from the catalog file
  4. Wire calculator, launch service, handler and router
  5. Optionally watch the catalog file for changes
  6. Start server with graceful shutdown

FLAGS / ENVIRONMENT:
  --config           INCENTIVE_CONFIG           YAML/JSON/TOML config file
  --port             INCENTIVE_PORT             HTTP port (default 8080)
  --db               INCENTIVE_DB               SQLite path, ":memory:" allowed
  --db-driver        INCENTIVE_DB_DRIVER        sqlite3 (cgo) or sqlite (pure Go)
  --catalog          INCENTIVE_CATALOG          Catalog file (embedded default if empty)
  --watch-catalog    INCENTIVE_WATCH_CATALOG    Reseed when the catalog file changes
  --log-level        INCENTIVE_LOG_LEVEL        debug | info | warn | error
  --otlp-endpoint    INCENTIVE_OTLP_ENDPOINT    host:port of an OTLP gRPC collector
  --otlp-insecure    INCENTIVE_OTLP_INSECURE    Plaintext gRPC (default true)
  --allowed-origins  INCENTIVE_ALLOWED_ORIGINS  CORS origins, comma-separated

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the catalog watcher
  4. Flush metrics and close the database

EXAMPLES:
  # Run with file database
  ./server --db=./data/incentive.db

  # Run with in-memory database and a custom catalog, reloaded on change
  ./server --db=:memory: --catalog=./catalog.yaml --watch-catalog

  # Count tasks in an export
  ./server count-tasks --file=export.csv --operator="JOAO SILVA"

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - factory/catalog.go: Catalog file format
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/compensation"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/launch"
	"github.com/warp/incentive-engine/store/sqlite"
	"github.com/warp/incentive-engine/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "server",
		Short:         "Warehouse variable compensation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	pf := root.PersistentFlags()
	pf.String(config.KeyConfigFile, "", "config file (yaml, json or toml)")
	pf.Int(config.KeyPort, 8080, "HTTP server port")
	pf.String(config.KeyDB, "incentive.db", "SQLite database path (\":memory:\" for in-memory)")
	pf.String(config.KeyDBDriver, sqlite.DriverCGO, "SQLite driver: sqlite3 (cgo) or sqlite (pure Go)")
	pf.String(config.KeyCatalog, "", "catalog file (embedded default when empty)")
	pf.Bool(config.KeyWatchCatalog, false, "reseed reference data when the catalog file changes")
	pf.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	pf.String(config.KeyOTLPEndpoint, "", "OTLP gRPC collector endpoint (metrics disabled when empty)")
	pf.Bool(config.KeyOTLPInsecure, true, "use plaintext gRPC for the OTLP collector")
	pf.StringSlice(config.KeyAllowedOrigins, nil, "CORS allowed origins")
	_ = v.BindPFlags(pf)

	root.AddCommand(newServeCmd(v), newCountTasksCmd(v))
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Metrics
	metrics := telemetry.NewNoopRecorder()
	if cfg.OTLPEndpoint != "" {
		exp, err := telemetry.NewExporter(ctx, telemetry.ExporterConfig{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: cfg.OTLPInsecure,
		})
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := exp.Close(flushCtx); err != nil {
				logger.Warn("flushing metrics", zap.Error(err))
			}
		}()
		metrics = exp.Recorder
		logger.Info("exporting metrics", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	// Initialize store
	store, err := sqlite.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Seed reference data
	catalog, err := factory.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	if err := catalog.Seed(ctx, store); err != nil {
		return err
	}

	// Engine and lifecycle
	cached := compensation.NewCachedData(store)
	calc := compensation.NewCalculator(cached, catalog.Roles)

	svc := launch.NewService(store, calc)
	svc.Logger = logger.Named("launch")
	svc.Metrics = metrics

	handler := api.NewHandler(svc, calc, store)
	handler.Logger = logger.Named("api")
	handler.Metrics = metrics

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      logger.Core().Enabled(zap.DebugLevel),
	})

	// Catalog hot reload
	if cfg.WatchCatalog {
		w, err := factory.NewWatcher(cfg.CatalogPath, store, func(c *factory.Catalog) {
			cached.Invalidate()
			if !maps.Equal(c.Roles.Roles(), catalog.Roles.Roles()) {
				logger.Warn("role table changes take effect on restart")
			}
		}, logger.Named("catalog"))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return err
		}
		defer w.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("driver", cfg.DBDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
