package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"famfin/internal/cli"
	"famfin/internal/log"
	"famfin/internal/services"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot, err := cli.Init(ctx, "reminder-worker")
	if err != nil {
		cli.SetupLogger("reminder-worker", "info").Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer boot.Close()

	logger := boot.Logger
	cfg := boot.Config
	if boot.Backend.AMQP == nil {
		logger.Warn("AMQP disabled, due reminders are advanced without notifications")
	}

	reminders := services.NewReminderService(boot.Backend.Store, boot.Backend.ReminderPublisher(), boot.Location)

	sigCtx, stop := cli.SignalContext(logger)
	defer stop()

	// Run once on startup so a missed schedule does not wait a whole period.
	processDue(sigCtx, logger, reminders, time.Now())

	c := cron.New(cron.WithLocation(boot.Location))
	if _, err := c.AddFunc(cfg.ReminderSchedule, func() {
		processDue(sigCtx, logger, reminders, time.Now())
	}); err != nil {
		logger.Error("Invalid reminder schedule", "schedule", cfg.ReminderSchedule, "error", err)
		boot.Close()
		os.Exit(1)
	}
	c.Start()
	logger.Info("Reminder worker started", "schedule", cfg.ReminderSchedule, "timezone", boot.Location.String())

	<-sigCtx.Done()

	// Wait for a running pass to finish.
	<-c.Stop().Done()
	logger.Info("Reminder worker shutdown complete")
}

func processDue(ctx context.Context, logger *log.Logger, reminders *services.ReminderService, now time.Time) {
	if ctx.Err() != nil {
		return
	}
	n, err := reminders.ProcessDue(ctx, now)
	if err != nil {
		logger.Error("Reminder processing failed", "error", err)
		return
	}
	logger.Info("Reminder processing complete", "announced", n)
}
