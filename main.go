package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/FACorreiaa/go-travel-planner/app/db"
	appLogger "github.com/FACorreiaa/go-travel-planner/app/logger"
	"github.com/FACorreiaa/go-travel-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-planner/app/tracer"
	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/container"
	"github.com/FACorreiaa/go-travel-planner/internal/router"
)

const serviceName = "travel-planner"

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	if err := run(&cfg, logger); err != nil {
		logger.Error("Application exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability ---
	otelProvider, err := tracer.InitTracingAndMetrics(serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()
	metrics.InitAppMetrics()

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	// Run migrations before the main pool is created
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		return fmt.Errorf("database migrations: %w", err)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		return fmt.Errorf("database pool: %w", err)
	}

	// --- Dependencies ---
	c, err := container.NewContainer(ctx, cfg, pool, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("container: %w", err)
	}
	defer c.Close()

	if !c.WaitForDB(ctx) {
		return errors.New("database not ready after waiting")
	}

	// --- Routers ---
	timeout := cfg.Server.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	mux := newHTTPHandler(c.RouterConfig(), logger, timeout)

	metricsMux := chi.NewMux()
	metricsMux.Handle("/metrics", otelProvider.Handler())

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Handlers.Prometheus.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, srv := range []struct {
		name   string
		server *http.Server
	}{
		{"api", apiServer},
		{"metrics", metricsServer},
	} {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("server", srv.name), slog.String("address", srv.server.Addr))
			if err := srv.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", srv.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

// newHTTPHandler applies the server-wide middleware around the API routes.
func newHTTPHandler(rc *router.Config, logger *slog.Logger, timeout time.Duration) http.Handler {
	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(timeout))
	mux.Use(middleware.Compress(5, "application/json", "application/geo+json"))
	mux.Mount("/", router.SetupRouter(rc))
	return mux
}

// setupLogger configures and returns the application logger.
func setupLogger(mode string) *slog.Logger {
	if mode == "development" || mode == "" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
