package engine

import (
	"math"
	"sort"
	"sync"
)

// ParseLog is a point-in-time copy of run statistics.
type ParseLog struct {
	TotalReads      int64 `json:"total_reads"`
	SuccessfulReads int64 `json:"successful_reads"`
	FailedReads     int64 `json:"failed_reads"`

	// FailuresByStep counts failed pairs by aborting step. Every step id
	// is present, with zero when it never aborted a pair.
	FailuresByStep map[string]int64 `json:"failures_by_step"`

	// SoftFailuresByStep counts failures of steps that are not must_pass.
	// They never abort a pair and never count as a failed read.
	SoftFailuresByStep map[string]int64 `json:"soft_failures_by_step"`

	// SuccessRate is the percentage of successful pairs, rounded to two
	// decimals. Zero when no pair was processed.
	SuccessRate float64 `json:"success_rate"`
}

// Stats accumulates run statistics. It is safe for concurrent use. Only
// the pipeline runner records into it.
type Stats struct {
	mu         sync.Mutex
	total      int64
	successful int64
	failed     int64
	failures   map[string]int64
	soft       map[string]int64
}

// NewStats creates statistics pre-seeded with the given step ids.
func NewStats(stepIDs ...string) *Stats {
	s := &Stats{
		failures: make(map[string]int64, len(stepIDs)),
		soft:     make(map[string]int64),
	}
	s.register(stepIDs)
	return s
}

func (s *Stats) register(stepIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range stepIDs {
		if _, ok := s.failures[id]; !ok {
			s.failures[id] = 0
		}
	}
}

// record updates the counters for one finished pair.
func (s *Stats) record(v *Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if v.Passed {
		s.successful++
	} else {
		s.failed++
		if v.FailedStep != "" {
			s.failures[v.FailedStep]++
		}
	}
	if v.Context == nil {
		return
	}
	for _, o := range v.Context.Outcomes {
		if !o.MustPass && o.State == StateFailed {
			s.soft[o.StepID]++
		}
	}
}

// Snapshot returns a consistent copy of the statistics.
func (s *Stats) Snapshot() ParseLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := ParseLog{
		TotalReads:         s.total,
		SuccessfulReads:    s.successful,
		FailedReads:        s.failed,
		FailuresByStep:     make(map[string]int64, len(s.failures)),
		SoftFailuresByStep: make(map[string]int64, len(s.soft)),
	}
	for id, n := range s.failures {
		log.FailuresByStep[id] = n
	}
	for id, n := range s.soft {
		log.SoftFailuresByStep[id] = n
	}
	if s.total > 0 {
		log.SuccessRate = math.Round(float64(s.successful)/float64(s.total)*10000) / 100
	}
	return log
}

// StepIDs returns the ids in FailuresByStep, sorted.
func (l ParseLog) StepIDs() []string {
	ids := make([]string, 0, len(l.FailuresByStep))
	for id := range l.FailuresByStep {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
