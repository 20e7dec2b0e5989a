package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/readbreak/pkg/audit"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep runs.
	// 0 keeps runs forever.
	RetentionDays int

	// MaxRuns is the maximum number of runs to keep.
	// 0 means unlimited.
	MaxRuns int64

	// PruneSchedule is a cron expression for Scheduler.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces retention on audit runs.
type Pruner struct {
	storage audit.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage audit.Storage, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "audit.retention"),
		now:     time.Now,
	}
}

// Config returns the pruner configuration.
func (p *Pruner) Config() *Config {
	return p.config
}

// Prune deletes runs older than the retention period, then the oldest runs
// beyond MaxRuns. Returns the number of runs deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRuns > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_runs", p.config.MaxRuns,
		)
	} else {
		p.logger.Debug("no runs pruned")
	}

	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)

	deleted, err := p.storage.DeleteRuns(ctx, &audit.Query{EndTime: &cutoff})
	if err != nil {
		return 0, audit.NewRetentionError(p.config.RetentionDays, p.config.MaxRuns, err)
	}
	p.logger.Debug("pruned runs by age", "deleted_count", deleted, "cutoff_time", cutoff)
	return deleted, nil
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.CountRuns(ctx, &audit.Query{})
	if err != nil {
		return 0, audit.NewRetentionError(p.config.RetentionDays, p.config.MaxRuns, err)
	}
	if count <= p.config.MaxRuns {
		return 0, nil
	}

	excess := count - p.config.MaxRuns
	oldest, err := p.storage.QueryRuns(ctx, &audit.Query{
		SortOrder: "asc",
		Limit:     int(excess),
	})
	if err != nil {
		return 0, audit.NewRetentionError(p.config.RetentionDays, p.config.MaxRuns, err)
	}

	var deleted int64
	for _, r := range oldest {
		n, err := p.storage.DeleteRuns(ctx, &audit.Query{RunID: r.ID})
		if err != nil {
			return deleted, audit.NewRetentionError(p.config.RetentionDays, p.config.MaxRuns, err)
		}
		deleted += n
	}

	p.logger.Debug("pruned runs by count",
		"current_count", count,
		"max_runs", p.config.MaxRuns,
		"deleted_count", deleted,
	)
	return deleted, nil
}
