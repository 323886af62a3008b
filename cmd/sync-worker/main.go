package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"famfin/internal/backend"
	"famfin/internal/cli"
	"famfin/internal/log"
	"famfin/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot, err := cli.Init(ctx, "sync-worker")
	if err != nil {
		cli.SetupLogger("sync-worker", "info").Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer boot.Close()

	logger := boot.Logger
	cfg := boot.Config
	if boot.BackendConfig.Type == backend.MemoryBackend {
		logger.Warn("Sync worker running on the memory backend sees only its own transactions")
	}
	if boot.BackendConfig.SheetsEnabled() {
		if err := cfg.ValidateSheets(); err != nil {
			logger.Error("Sheets configuration invalid", "error", err)
			boot.Close()
			os.Exit(1)
		}
	}

	ledger, err := boot.Factory.CreateLedgerWriter(ctx, boot.BackendConfig)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		boot.Close()
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(boot.Backend.Store, ledger, cfg.SyncBatchSize)

	sigCtx, stop := cli.SignalContext(logger)
	defer stop()

	logger.Info("Starting sync worker",
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval,
		"amqp_enabled", boot.Backend.AMQP != nil)

	// Catch up on anything recorded while the worker was down.
	if n, err := syncWorker.StartupSyncCheck(sigCtx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
	} else {
		logger.Info("Startup sync check complete", "synced", n)
	}

	g, gctx := errgroup.WithContext(sigCtx)

	if client := boot.Backend.AMQP; client != nil {
		g.Go(func() error {
			err := client.ConsumeTransactionRecorded(gctx, syncWorker.HandleRecordedMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic sync only")
	}

	g.Go(func() error {
		runPeriodicSync(gctx, logger, syncWorker, cfg.SyncInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Sync worker stopped with error", "error", err)
		boot.Close()
		os.Exit(1)
	}
	logger.Info("Sync worker shutdown complete")
}

func runPeriodicSync(ctx context.Context, logger *log.Logger, w *worker.SyncWorker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.ProcessPending(ctx)
			if err != nil {
				logger.Error("Periodic sync failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Periodic sync complete", "synced", n)
			}
		}
	}
}
