package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"famfin/internal/cache"
	"famfin/internal/cli"
	"famfin/internal/core"
	apphttp "famfin/internal/http"
	"famfin/internal/services"
	"famfin/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot, err := cli.Init(ctx, "api")
	if err != nil {
		cli.SetupLogger("api", "info").Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer boot.Close()

	logger := boot.Logger
	cfg := boot.Config
	st := boot.Backend.Store

	gens := cache.NewGenerations()
	reports := cache.NewLRUCache[core.FinancialReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager()
	caches.Register(reports)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	issuer := session.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	svc := apphttp.Services{
		Family:    services.NewFamilyService(st, issuer, gens),
		Ledger:    services.NewLedgerService(st, boot.Backend.TransactionPublisher(), gens),
		Reports:   services.NewReportService(st, boot.Location, reports, gens),
		Dashboard: services.NewDashboardService(st, boot.Location),
		Budget:    services.NewBudgetService(st, boot.Location),
		Reminders: services.NewReminderService(st, boot.Backend.ReminderPublisher(), boot.Location),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, issuer, st, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	sigCtx, stop := cli.SignalContext(logger)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("Starting famfin server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", boot.Location.String(),
			"amqp_enabled", boot.Backend.AMQP != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if !cli.GracefulShutdown(gctx, logger, shutdownTimeout, srv.Shutdown) {
			return errors.New("server did not shut down cleanly")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		boot.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
