// Package cli provides common initialization for the famfin binaries:
// the API server, the sync worker and the reminder worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"famfin/internal/backend"
	"famfin/internal/config"
	"famfin/internal/log"
)

// SetupLogger builds the process logger for component at the given level and
// installs it as the slog default.
func SetupLogger(component, level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	cfg.Level = log.ParseLevel(level)
	cfg.Handler = nil

	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap is everything a famfin process needs before it starts serving.
type Bootstrap struct {
	Logger        *log.Logger
	Config        *config.Config
	Location      *time.Location
	Backend       *backend.BackendResult
	Factory       backend.Factory
	BackendConfig backend.Config
}

// Init loads the environment, configures logging and opens the backend.
// Returns an error instead of exiting so callers decide how to fail.
func Init(ctx context.Context, component string) (*Bootstrap, error) {
	LoadEnvFile()

	cfg := config.Load()
	logger := SetupLogger(component, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}

	factory := backend.NewFactory(logger.Logger.With("component", log.ComponentBackend), loc)
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	return &Bootstrap{
		Logger:        logger,
		Config:        cfg,
		Location:      loc,
		Backend:       res,
		Factory:       factory,
		BackendConfig: bcfg,
	}, nil
}

// Close releases the backend, logging instead of returning the error.
func (b *Bootstrap) Close() {
	if b.Backend == nil || b.Backend.Cleanup == nil {
		return
	}
	if err := b.Backend.Cleanup(); err != nil {
		b.Logger.Error("Backend cleanup failed", "error", err)
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// GracefulShutdown runs cleanup with a deadline once ctx is done.
// Returns false when cleanup did not finish before the timeout.
func GracefulShutdown(ctx context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context) error) bool {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cleanup(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Shutdown failed", "error", err)
			return false
		}
		logger.Info("Shutdown complete")
		return true
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
		return false
	}
}
