package storage

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/readbreak/pkg/audit"
)

const defaultLimit = 100

// MemoryStorage implements audit.Storage with in-memory maps.
type MemoryStorage struct {
	runs     map[string]*audit.RunRecord
	verdicts []*audit.VerdictRecord
	mu       sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		runs: make(map[string]*audit.RunRecord),
	}
}

// StoreRun persists a copy of run.
func (s *MemoryStorage) StoreRun(ctx context.Context, run *audit.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *run
	c.FailuresByStep = maps.Clone(run.FailuresByStep)
	s.runs[run.ID] = &c
	return nil
}

// StoreVerdict persists a copy of v.
func (s *MemoryStorage) StoreVerdict(ctx context.Context, v *audit.VerdictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *v
	c.Vars = maps.Clone(v.Vars)
	s.verdicts = append(s.verdicts, &c)
	return nil
}

// QueryRuns returns runs matching q.
func (s *MemoryStorage) QueryRuns(ctx context.Context, q *audit.Query) ([]*audit.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.matchingRuns(q)
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].StartedAt, out[j].StartedAt, q.SortOrder)
	})
	return page(out, q), nil
}

// QueryVerdicts returns verdicts matching q.
func (s *MemoryStorage) QueryVerdicts(ctx context.Context, q *audit.Query) ([]*audit.VerdictRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*audit.VerdictRecord{}
	for _, v := range s.verdicts {
		if verdictMatches(v, q) {
			c := *v
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return before(out[i].RecordedAt, out[j].RecordedAt, q.SortOrder)
	})
	return page(out, q), nil
}

// CountRuns returns the number of runs matching q.
func (s *MemoryStorage) CountRuns(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchingRuns(q))), nil
}

// DeleteRuns removes runs matching q and their verdicts.
func (s *MemoryStorage) DeleteRuns(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make(map[string]bool)
	for id, r := range s.runs {
		if runMatches(r, q) {
			deleted[id] = true
			delete(s.runs, id)
		}
	}
	kept := s.verdicts[:0]
	for _, v := range s.verdicts {
		if !deleted[v.RunID] {
			kept = append(kept, v)
		}
	}
	clear(s.verdicts[len(kept):])
	s.verdicts = kept
	return int64(len(deleted)), nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) matchingRuns(q *audit.Query) []*audit.RunRecord {
	out := []*audit.RunRecord{}
	for _, r := range s.runs {
		if runMatches(r, q) {
			c := *r
			out = append(out, &c)
		}
	}
	return out
}

func runMatches(r *audit.RunRecord, q *audit.Query) bool {
	if q.RunID != "" && r.ID != q.RunID {
		return false
	}
	if q.Pipeline != "" && r.Pipeline != q.Pipeline {
		return false
	}
	return inRange(r.StartedAt, q)
}

func verdictMatches(v *audit.VerdictRecord, q *audit.Query) bool {
	if q.RunID != "" && v.RunID != q.RunID {
		return false
	}
	if q.StepID != "" && v.FailedStep != q.StepID {
		return false
	}
	if q.Passed != nil && v.Passed != *q.Passed {
		return false
	}
	return inRange(v.RecordedAt, q)
}

func inRange(t time.Time, q *audit.Query) bool {
	if q.StartTime != nil && t.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && !t.Before(*q.EndTime) {
		return false
	}
	return true
}

func before(a, b time.Time, order string) bool {
	if strings.EqualFold(order, "asc") {
		return a.Before(b)
	}
	return a.After(b)
}

func page[T any](recs []T, q *audit.Query) []T {
	if q.Offset > 0 {
		if q.Offset >= len(recs) {
			return recs[:0]
		}
		recs = recs[q.Offset:]
	}
	limit := defaultLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
