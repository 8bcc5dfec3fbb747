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

	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/di"
	"github.com/mikey/email-intel/internal/factory"
	"github.com/mikey/email-intel/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	llmFactory *factory.LLMFactory,
	repo core.SenderRepository,
	reg *prometheus.Registry,
) error {
	defer logger.Sync()

	// Start the metrics endpoint
	metricsServer := &http.Server{
		Addr:              cfg.GetServer().MetricsAddress,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics endpoint started", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the filter
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to stop metrics server", zap.Error(err))
	}

	// Close any resources that need closing
	if err := llmFactory.Close(); err != nil {
		logger.Error("Failed to close LLM client", zap.Error(err))
	}
	if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close sender memory", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
