package core

// scheduler.go runs history pruning in the background. It runs once on
// start and then every interval until ctx is cancelled. A failed pass is
// logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig configures the history pruner.
type PruneConfig struct {
	RetentionDays int           // default: 90
	Interval      time.Duration // default: 24h
}

// StartHistoryPruner blocks until ctx is cancelled; run it in a goroutine.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg PruneConfig) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	slog.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.Interval.String(),
	)

	s.runPruneJob(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.runPruneJob(ctx, cfg)
		}
	}
}

func (s *Service) runPruneJob(ctx context.Context, cfg PruneConfig) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -cfg.RetentionDays)

	deleted, err := s.PruneHistory(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err, "deleted", deleted)
		return
	}
	slog.Info("history pruned",
		"entries_deleted", deleted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
