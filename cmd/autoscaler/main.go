package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/predictops/autoscaler/api"
	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/internal/metrics"
	"github.com/predictops/autoscaler/internal/metricsource"
	"github.com/predictops/autoscaler/internal/orchestrator"
	"github.com/predictops/autoscaler/internal/policy"
	"github.com/predictops/autoscaler/internal/predictor"
	"github.com/predictops/autoscaler/internal/recorder"
	"github.com/predictops/autoscaler/internal/resilience"
	"github.com/predictops/autoscaler/internal/scaler"
	"github.com/predictops/autoscaler/pkg/config"
	"github.com/predictops/autoscaler/pkg/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", false, "run database migrations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	db, err := database.New(cfg.Database.ToDBConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("Database connection established")

	if *migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		logger.Info("Running database migrations")
		migrator := database.NewMigrator(db)
		if err := migrator.Run(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Migrations completed successfully")
		return nil
	}

	// Metrics source
	metricsSource := metricsource.NewPrometheusSource(metricsource.PrometheusConfig{
		BaseURL:    cfg.MetricsSource.Endpoint,
		Timeout:    cfg.MetricsSource.Timeout,
		MaxRetries: cfg.MetricsSource.RetryAttempts,
	})
	defer metricsSource.Close()

	// Forecast model; the serving signature is resolved up front so a
	// misconfigured model endpoint fails at startup, not mid-cycle.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	servingPredictor, err := predictor.NewServingPredictor(startupCtx, predictor.ServingConfig{
		BaseURL:      cfg.Predictor.Endpoint,
		ModelName:    cfg.Predictor.ModelName,
		WindowLength: cfg.Predictor.WindowLength,
		Timeout:      cfg.Predictor.Timeout,
	})
	startupCancel()
	if err != nil {
		return fmt.Errorf("failed to initialize predictor: %w", err)
	}
	defer servingPredictor.Close()

	// Workload scaler behind a circuit breaker
	httpScaler := scaler.NewHTTPScaler(scaler.HTTPScalerConfig{
		Endpoint:  cfg.Scaler.Endpoint,
		Namespace: cfg.Scaler.Namespace,
		Timeout:   cfg.Scaler.Timeout,
	})
	resilientScaler := scaler.NewResilientScaler(scaler.ResilientScalerConfig{
		Scaler:      httpScaler,
		MaxFailures: cfg.Scaler.CircuitBreaker.MaxFailures,
		OpenTimeout: cfg.Scaler.CircuitBreaker.Timeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
			metrics.Get().SetCircuitBreakerState(name, int(to))
		},
	})
	defer resilientScaler.Close()

	// Policy discovery
	policySource := policy.NewHTTPSource(policy.HTTPSourceConfig{
		Endpoint: cfg.PolicySource.Endpoint,
		Timeout:  cfg.PolicySource.Timeout,
	})
	defer policySource.Close()

	// Decision log, flushed once at shutdown
	var decisionRecorder *recorder.Recorder
	if cfg.Recorder.Enabled {
		decisionRecorder = recorder.New(cfg.Recorder.Dir)
	}

	orch := orchestrator.New(orchestrator.Config{
		Interval:       cfg.Loop.Interval,
		Namespace:      cfg.PolicySource.Namespace,
		ErrorThreshold: cfg.Loop.ErrorThreshold,
		ReloadInterval: cfg.Loop.ReloadInterval,
		TargetTimeout:  cfg.Loop.TargetTimeout,
		MaxConcurrent:  cfg.Loop.MaxConcurrent,
	}, orchestrator.Dependencies{
		PolicySource:  policySource,
		MetricsSource: metricsSource,
		Predictor:     servingPredictor,
		Scaler:        resilientScaler,
		Recorder:      decisionRecorder,
		DB:            db,
	})

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	if cfg.Prometheus.Enabled {
		metrics.StartServer(cfg.Prometheus.Port)
	}

	server := api.NewServer(*cfg, db, orch, metricsSource)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()

	errChan := make(chan error, 2)

	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		logger.Infof("Control loop starting (interval %s)", cfg.Loop.Interval)
		if err := orch.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("control loop: %w", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.Errorf("Fatal error: %v", runErr)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	// Stop the loop first so no new scaling actions start mid-shutdown.
	loopCancel()

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Wait for the in-flight cycle so the recorder flush below sees its
	// final records.
	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		logger.Warn("Control loop did not stop within the shutdown timeout")
	}

	orch.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown error: %v", err)
	}

	if decisionRecorder != nil {
		if err := decisionRecorder.Flush(); err != nil {
			logger.Errorf("Failed to write decision log: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("Stopped gracefully")
	return nil
}
