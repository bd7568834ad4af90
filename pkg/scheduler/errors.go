// Package scheduler runs bounded-parallelism batches of tasks for the
// phases that may fan out (spec §5: phases 2, 3, 4, 5, 8, 10), on top
// of golang.org/x/sync/errgroup for the concurrency-cap and
// cancellation-propagation semantics those phases require.
//
// Grounded on tarsy's pkg/queue/pool.go (pod-scoped worker pool,
// session cancel registry, graceful stop) and pkg/queue/worker.go,
// generalized from "pool of alert-session workers" to "bounded batch
// of (phase, task) units of work" and reimplemented over errgroup
// rather than a hand-rolled WaitGroup+channel pool, since this
// module's phases need strict deadline propagation rather than a
// long-lived polling worker loop.
package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTasks is returned when RunPhase is called with an empty task list.
var ErrNoTasks = errors.New("scheduler: no tasks given")

// PhaseTimeoutError is raised when a phase's budget is exceeded (§5
// "Cancellation & timeouts"): phase_id, elapsed, budget,
// time_remaining=0, exceeded_by.
type PhaseTimeoutError struct {
	PhaseID       string
	Elapsed       time.Duration
	Budget        time.Duration
	TimeRemaining time.Duration
	ExceededBy    time.Duration
}

func (e *PhaseTimeoutError) Error() string {
	return fmt.Sprintf("phase %s exceeded its %v budget (elapsed %v, exceeded by %v)",
		e.PhaseID, e.Budget, e.Elapsed, e.ExceededBy)
}

// NewPhaseTimeoutError constructs a PhaseTimeoutError for a phase that
// ran for elapsed against a budget.
func NewPhaseTimeoutError(phaseID string, elapsed, budget time.Duration) *PhaseTimeoutError {
	return &PhaseTimeoutError{
		PhaseID:       phaseID,
		Elapsed:       elapsed,
		Budget:        budget,
		TimeRemaining: 0,
		ExceededBy:    elapsed - budget,
	}
}
