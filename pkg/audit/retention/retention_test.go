package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/readbreak/pkg/audit"
	"mercator-hq/readbreak/pkg/audit/storage"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s audit.Storage, ages ...int) {
	t.Helper()
	ctx := context.Background()
	for i, days := range ages {
		id := fmt.Sprintf("run-%d", i)
		started := now.AddDate(0, 0, -days)
		require.NoError(t, s.StoreRun(ctx, &audit.RunRecord{
			ID: id, Pipeline: "p.yaml", StartedAt: started, FinishedAt: started,
		}))
		require.NoError(t, s.StoreVerdict(ctx, &audit.VerdictRecord{
			ID: "v-" + id, RunID: id, ReadID: "r", FailedStep: "bc1", RecordedAt: started,
		}))
	}
}

func newPruner(s audit.Storage, cfg *Config) *Pruner {
	p := NewPruner(s, cfg, nil)
	p.now = func() time.Time { return now }
	return p
}

func TestPruner_ByAge(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	seed(t, s, 100, 50, 10, 1)

	deleted, err := newPruner(s, &Config{RetentionDays: 30}).Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	runs, err := s.QueryRuns(ctx, &audit.Query{SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)

	verdicts, err := s.QueryVerdicts(ctx, &audit.Query{})
	require.NoError(t, err)
	assert.Len(t, verdicts, 2)
}

func TestPruner_ByCount(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	seed(t, s, 5, 4, 3, 2, 1)

	deleted, err := newPruner(s, &Config{MaxRuns: 2}).Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	runs, err := s.QueryRuns(ctx, &audit.Query{SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-4", runs[1].ID)
}

func TestPruner_AgeThenCount(t *testing.T) {
	s := storage.NewMemoryStorage()
	seed(t, s, 100, 5, 4, 3)

	deleted, err := newPruner(s, &Config{RetentionDays: 30, MaxRuns: 2}).Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestPruner_NothingConfigured(t *testing.T) {
	s := storage.NewMemoryStorage()
	seed(t, s, 1000)

	deleted, err := newPruner(s, &Config{}).Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestScheduler(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		sched := NewScheduler(NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "not cron"}, nil))
		err := sched.Start(context.Background())
		require.Error(t, err)
		assert.False(t, sched.IsRunning())
	})

	t.Run("empty schedule", func(t *testing.T) {
		sched := NewScheduler(NewPruner(storage.NewMemoryStorage(), &Config{}, nil))
		require.NoError(t, sched.Start(context.Background()))
		assert.False(t, sched.IsRunning())
		assert.Nil(t, sched.NextRun())
	})

	t.Run("start and stop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sched := NewScheduler(NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "0 3 * * *"}, nil))
		require.NoError(t, sched.Start(ctx))
		assert.True(t, sched.IsRunning())

		next := sched.NextRun()
		require.NotNil(t, next)
		assert.Equal(t, 3, next.Hour())

		sched.Stop()
		assert.False(t, sched.IsRunning())
	})
}
