package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the monthly grant on GRANT_SCHEDULE until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, cfg, err := ctx.grantJob()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := cron.New(cron.WithLocation(time.UTC))
			if _, err := c.AddFunc(cfg.GrantSchedule, func() {
				runScheduledGrant(runCtx, job)
			}); err != nil {
				return fmt.Errorf("invalid GRANT_SCHEDULE %q: %w", cfg.GrantSchedule, err)
			}

			c.Start()
			slog.Info("credit grant scheduler started", "schedule", cfg.GrantSchedule)

			<-runCtx.Done()
			slog.Info("credit grant scheduler stopping")
			<-c.Stop().Done()
			return nil
		},
	}
}

func runScheduledGrant(ctx context.Context, job *jobs.GrantJob) {
	report, err := job.Run(ctx, false)
	switch {
	case errors.Is(err, jobs.ErrGrantInProgress):
		slog.Info("monthly grant skipped, another run holds the lock")
	case err != nil:
		slog.Error("scheduled monthly grant failed", "operation", "grant", "error", err)
	default:
		slog.Info("scheduled monthly grant complete",
			"credited", report.Credited,
			"failed", report.Failed(),
		)
	}
}
