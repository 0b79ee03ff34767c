package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/internal/adapter/browsers"
	"github.com/user/pagecheck-service/internal/adapter/postgres"
	"github.com/user/pagecheck-service/internal/adapter/profile"
	redis_adapter "github.com/user/pagecheck-service/internal/adapter/redis"
	"github.com/user/pagecheck-service/internal/delivery/http/handler"
	"github.com/user/pagecheck-service/internal/delivery/http/router"
	"github.com/user/pagecheck-service/internal/scenario"
	"github.com/user/pagecheck-service/internal/usecase"
	"github.com/user/pagecheck-service/internal/verifier"
	"github.com/user/pagecheck-service/pkg/config"
	"github.com/user/pagecheck-service/pkg/logger"
	"github.com/user/pagecheck-service/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// --- Configuration ---
	cfg, err := config.Load(os.Getenv("PAGECHECK_ENV_FILE"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("Logger initialized", zap.String("level", cfg.LogLevel))

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Database Connections ---
	dbpool, err := postgres.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	log.Info("PostgreSQL connection pool established")

	rdb, err := redis_adapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("Redis connection established")

	// --- Repositories ---
	runRepo := postgres.NewRunRepo(dbpool)
	if err := runRepo.EnsureSchema(ctx); err != nil {
		return err
	}
	queueRepo := redis_adapter.NewQueueRepo(rdb)
	cooldownRepo := redis_adapter.NewCooldownRepo(rdb)

	catalog, err := scenario.NewCatalog(cfg.ScenarioDir)
	if err != nil {
		return err
	}
	log.Info("Scenarios loaded", zap.Int("count", len(catalog.All())))

	// --- Browsers ---
	registry := browsers.NewRegistry(browsers.Options{
		Headless:      cfg.Headless,
		RodStealth:    cfg.RodStealth,
		ActionTimeout: cfg.NavigationTimeout,
		Profile:       profile.NewManager(cfg.ProxyList, cfg.UserAgents),
		Logger:        log.Named("browser"),
	})
	defer func() {
		if err := registry.Close(); err != nil {
			log.Warn("Failed to close browsers", zap.Error(err))
		}
	}()

	policy, err := verifier.ParseDatePolicy(cfg.DatePolicy)
	if err != nil {
		return err
	}
	v := verifier.New(verifier.Options{
		VisibilityTimeout: cfg.VisibilityTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		PopupTimeout:      cfg.PopupTimeout,
		Dates:             verifier.DateComparator{Policy: policy},
		Logger:            log.Named("verifier"),
		Metrics:           m,
	})

	// --- Use Cases ---
	runManager := usecase.NewRunManager(runRepo, queueRepo, cooldownRepo, catalog, usecase.RunDefaults{
		BaseURL:  cfg.BaseURL,
		Driver:   cfg.BrowserDriver,
		Cooldown: cfg.Cooldown,
		Drivers:  registry.Names(),
	}, log)
	runWorker := usecase.NewRunWorker(queueRepo, runRepo, registry, catalog, v, usecase.WorkerOptions{
		PollTimeout: cfg.QueuePollTimeout,
		RunTimeout:  cfg.RunTimeout,
	}, m, log)
	pool := usecase.NewWorkerPool(runWorker, cfg.Workers, cfg.RunsPerMinute, log)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(runManager, catalog, map[string]handler.Pinger{
		"postgres": runRepo,
		"redis":    queueRepo,
	}, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, m, reg, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	poolDone := make(chan error, 1)
	go func() { poolDone <- pool.Run(ctx) }()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("Could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := <-poolDone; err != nil {
		log.Error("Worker pool stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
	return nil
}
