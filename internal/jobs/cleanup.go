package jobs

import (
	"context"
	"log/slog"
	"time"

	"insightica/internal/metrics"
	"insightica/internal/timeframe"
)

// PresencePruner deletes presence rows last seen at or before a cutoff.
type PresencePruner interface {
	PruneBefore(ctx context.Context, cutoffMillis int64) (int64, error)
}

// PresenceCleanupJob removes presence rows that have been stale for longer
// than the retention. Live reads filter stale rows on their own, so this
// only bounds table growth.
type PresenceCleanupJob struct {
	store     PresencePruner
	retention time.Duration
	clock     timeframe.TimeProvider
	logger    *slog.Logger
}

func NewPresenceCleanupJob(store PresencePruner, retention time.Duration, clock timeframe.TimeProvider, logger *slog.Logger) *PresenceCleanupJob {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &PresenceCleanupJob{store: store, retention: retention, clock: clock, logger: logger}
}

func (j *PresenceCleanupJob) Name() string { return "presence_cleanup" }

func (j *PresenceCleanupJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now(time.UTC).Add(-j.retention)

	deleted, err := j.store.PruneBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		j.logger.Error("Failed to prune presence rows", slog.Any("error", err))
		return err
	}
	metrics.PresenceRowsPruned.Add(float64(deleted))

	if deleted == 0 {
		j.logger.Debug("No stale presence rows to clean up")
		return nil
	}
	j.logger.Info("Cleaned up stale presence rows",
		slog.Int64("deleted_count", deleted),
		slog.Time("cutoff", cutoff))
	return nil
}
