package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/readbreak/pkg/audit"
)

// createTempDB creates a temporary SQLite database on the pure-Go driver.
func createTempDB(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "audit.db")
	s, err := NewSQLiteStorage(&SQLiteConfig{
		Path:        dbPath,
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func backends(t *testing.T) map[string]audit.Storage {
	sqlite, _ := createTempDB(t)
	return map[string]audit.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func run(id string, day int, pipeline string) *audit.RunRecord {
	return &audit.RunRecord{
		ID:              id,
		Pipeline:        pipeline,
		PipelineName:    "demo",
		Input1:          "r1.fq.gz",
		Input2:          "r2.fq.gz",
		StartedAt:       base.AddDate(0, 0, day),
		FinishedAt:      base.AddDate(0, 0, day).Add(time.Minute),
		TotalReads:      10,
		SuccessfulReads: 7,
		FailedReads:     3,
		SuccessRate:     70,
		FailuresByStep:  map[string]int64{"bc1": 2, "umi": 1},
	}
}

func verdict(id, runID, step string, passed bool, at time.Duration) *audit.VerdictRecord {
	return &audit.VerdictRecord{
		ID:         id,
		RunID:      runID,
		ReadID:     "read-" + id,
		Passed:     passed,
		FailedStep: step,
		Message:    step + " operation failed",
		Vars:       map[string]any{"read_id": "read-" + id, "len_seq1": 42},
		RecordedAt: base.Add(at),
	}
}

func TestSQLiteStorage_Initialize(t *testing.T) {
	store, dbPath := createTempDB(t)

	_, err := os.Stat(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
}

func TestSQLiteStorage_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStorage(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"})
	require.Error(t, err)

	var se *audit.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "open", se.Operation)
}

func TestStorage_Runs(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.StoreRun(ctx, run("r1", 0, "a.yaml")))
			require.NoError(t, s.StoreRun(ctx, run("r2", 1, "b.yaml")))
			require.NoError(t, s.StoreRun(ctx, run("r3", 2, "a.yaml")))

			runs, err := s.QueryRuns(ctx, &audit.Query{})
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, "r3", runs[0].ID, "newest first by default")

			got := runs[2]
			assert.Equal(t, "r1", got.ID)
			assert.True(t, got.StartedAt.Equal(base))
			assert.Equal(t, time.Minute, got.Duration())
			assert.Equal(t, int64(3), got.FailedReads)
			assert.Equal(t, 70.0, got.SuccessRate)
			assert.Equal(t, map[string]int64{"bc1": 2, "umi": 1}, got.FailuresByStep)

			runs, err = s.QueryRuns(ctx, &audit.Query{Pipeline: "a.yaml", SortOrder: "asc"})
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "r1", runs[0].ID)
			assert.Equal(t, "r3", runs[1].ID)

			runs, err = s.QueryRuns(ctx, &audit.Query{Limit: 1, Offset: 1})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "r2", runs[0].ID)

			cutoff := base.AddDate(0, 0, 1)
			n, err := s.CountRuns(ctx, &audit.Query{EndTime: &cutoff})
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = s.CountRuns(ctx, &audit.Query{StartTime: &cutoff})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})
	}
}

func TestStorage_StoreRunReplaces(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := run("r1", 0, "a.yaml")
			require.NoError(t, s.StoreRun(ctx, r))
			r.Error = "interrupted"
			require.NoError(t, s.StoreRun(ctx, r))

			runs, err := s.QueryRuns(ctx, &audit.Query{RunID: "r1"})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "interrupted", runs[0].Error)
		})
	}
}

func TestStorage_Verdicts(t *testing.T) {
	ctx := context.Background()
	pass, fail := true, false

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.StoreVerdict(ctx, verdict("v1", "r1", "bc1", false, 1*time.Second)))
			require.NoError(t, s.StoreVerdict(ctx, verdict("v2", "r1", "umi", false, 2*time.Second)))
			require.NoError(t, s.StoreVerdict(ctx, verdict("v3", "r1", "", true, 3*time.Second)))
			require.NoError(t, s.StoreVerdict(ctx, verdict("v4", "r2", "bc1", false, 4*time.Second)))

			got, err := s.QueryVerdicts(ctx, &audit.Query{RunID: "r1", SortOrder: "asc"})
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "v1", got[0].ID)
			assert.Equal(t, "read-v1", got[0].ReadID)
			assert.Equal(t, "bc1 operation failed", got[0].Message)
			assert.Equal(t, "read-v1", got[0].Vars["read_id"])
			assert.EqualValues(t, 42, got[0].Vars["len_seq1"])
			assert.True(t, got[0].RecordedAt.Equal(base.Add(time.Second)))

			got, err = s.QueryVerdicts(ctx, &audit.Query{StepID: "bc1"})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "v4", got[0].ID)

			got, err = s.QueryVerdicts(ctx, &audit.Query{Passed: &pass})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "v3", got[0].ID)

			got, err = s.QueryVerdicts(ctx, &audit.Query{Passed: &fail, RunID: "r1"})
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestStorage_DeleteRunsCascades(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.StoreRun(ctx, run("r1", 0, "a.yaml")))
			require.NoError(t, s.StoreRun(ctx, run("r2", 5, "a.yaml")))
			require.NoError(t, s.StoreVerdict(ctx, verdict("v1", "r1", "bc1", false, 0)))
			require.NoError(t, s.StoreVerdict(ctx, verdict("v2", "r2", "bc1", false, 0)))

			cutoff := base.AddDate(0, 0, 1)
			n, err := s.DeleteRuns(ctx, &audit.Query{EndTime: &cutoff})
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			runs, err := s.QueryRuns(ctx, &audit.Query{})
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, "r2", runs[0].ID)

			got, err := s.QueryVerdicts(ctx, &audit.Query{})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "r2", got[0].RunID)
		})
	}
}

func TestMemoryStorage_StoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	r := run("r1", 0, "a.yaml")
	require.NoError(t, s.StoreRun(ctx, r))
	r.FailuresByStep["bc1"] = 99

	runs, err := s.QueryRuns(ctx, &audit.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), runs[0].FailuresByStep["bc1"])
}
