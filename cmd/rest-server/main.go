// rest-server is the HTTP API server that adapts the framework launcher
// into the stable job-management surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lanya16/pai/internal/api"
	"github.com/lanya16/pai/internal/config"
	"github.com/lanya16/pai/internal/descriptor"
	"github.com/lanya16/pai/internal/exitspec"
	"github.com/lanya16/pai/internal/hdfs"
	"github.com/lanya16/pai/internal/health"
	"github.com/lanya16/pai/internal/job"
	"github.com/lanya16/pai/internal/launcher"
	"github.com/lanya16/pai/internal/observability"
	"github.com/lanya16/pai/internal/provision"
	"github.com/lanya16/pai/internal/sshkey"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	launcherCfg := launcher.LoadConfigFromEnv()
	storeCfg := hdfs.LoadConfigFromEnv()
	builderCfg := descriptor.LoadConfigFromEnv()
	provisionCfg := provision.LoadConfigFromEnv()

	// The exit-spec table is required for all job classification:
	// a load failure aborts startup.
	exitSpecs, err := exitspec.Load(svcCfg.ExitSpecPath)
	if err != nil {
		return err
	}
	slog.Info("Loaded exit spec table", "path", svcCfg.ExitSpecPath, "entries", exitSpecs.Len())

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// External collaborators
	launcherClient := launcher.NewClient(launcherCfg)
	storeClient := hdfs.NewClient(storeCfg)

	// Create health checker
	healthChecker := health.NewChecker(launcherClient, storeClient)

	// Create the translation and provisioning engine
	builder := descriptor.NewBuilder(builderCfg)
	provisioner := provision.New(storeClient, sshkey.Generate, provisionCfg, metrics)

	jobService := job.NewService(job.Deps{
		Launcher:     launcherClient,
		Builder:      builder,
		Provisioner:  provisioner,
		Store:        storeClient,
		ExitSpecs:    exitSpecs,
		Metrics:      metrics,
		DefaultQueue: svcCfg.DefaultQueue,
		ContextRoot:  provisionCfg.ContextRoot,
	})

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		JobService:    jobService,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
		AdminUsers:    svcCfg.AdminUsers,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Jobs keep running behind the launcher; the adapter holds no job state,
	// so nothing needs draining beyond in-flight requests.
	slog.Info("Shutdown complete")
	return nil
}
