package engine

import (
	"time"

	"github.com/google/uuid"

	"mercator-hq/readbreak/pkg/expr"
)

// RunState is the state shared by every read pair of one run: the compiled
// expression cache and the run statistics. Independent runs must use
// independent RunStates.
type RunState struct {
	// ID identifies the run in logs, audit records and metrics.
	ID string

	// Cache holds compiled templates keyed by their literal text.
	Cache *expr.Cache

	// Stats accumulates per-run statistics. New seeds it with the
	// pipeline's step ids.
	Stats *Stats

	// Started is when the run state was created.
	Started time.Time
}

// NewRunState creates empty run state with a fresh run id.
func NewRunState() *RunState {
	return &RunState{
		ID:      uuid.NewString(),
		Cache:   expr.NewCache(),
		Stats:   NewStats(),
		Started: time.Now(),
	}
}
