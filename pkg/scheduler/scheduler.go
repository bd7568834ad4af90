package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of fan-out work submitted to a phase. ID is used
// for the active-task registry and for log correlation; it carries no
// other meaning.
type Task struct {
	ID string
	Run func(ctx context.Context) error
}

// Scheduler runs bounded-parallelism batches of Tasks, enforcing a
// concurrency cap and a per-phase deadline. It is safe for concurrent
// use; RunPhase may be called from multiple goroutines, each
// contending for the same cap.
type Scheduler struct {
	cap int

	mu     sync.Mutex
	active map[string]struct{}
}

// New constructs a Scheduler with the given concurrency cap. A
// non-positive cap defaults to the number of logical CPUs (§5's
// "concurrency cap = number of logical CPUs by default").
func New(concurrencyCap int) *Scheduler {
	if concurrencyCap < 1 {
		concurrencyCap = runtime.NumCPU()
	}
	return &Scheduler{cap: concurrencyCap, active: make(map[string]struct{})}
}

// Cap returns the configured concurrency cap.
func (s *Scheduler) Cap() int { return s.cap }

// ActiveTaskIDs returns the IDs of tasks currently executing, for
// diagnostics.
func (s *Scheduler) ActiveTaskIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// RunPhase executes tasks with bounded parallelism (at most s.Cap()
// concurrently), enforcing budget as the phase's overall deadline. If
// budget elapses before every task completes, outstanding tasks are
// cancelled (via ctx) and RunPhase returns a *PhaseTimeoutError;
// cancellation is never swallowed — a task that itself returns
// context.Canceled still surfaces as part of the aggregated error
// unless the phase timeout error takes precedence.
func (s *Scheduler) RunPhase(ctx context.Context, phaseID string, budget time.Duration, tasks []Task) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}

	start := time.Now()
	phaseCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	g, gctx := errgroup.WithContext(phaseCtx)
	g.SetLimit(s.cap)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			s.markActive(task.ID, true)
			defer s.markActive(task.ID, false)
			return task.Run(gctx)
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)

	if phaseCtx.Err() != nil && elapsed >= budget {
		slog.Warn("phase exceeded budget", "phase_id", phaseID, "elapsed", elapsed, "budget", budget)
		return NewPhaseTimeoutError(phaseID, elapsed, budget)
	}
	return err
}

func (s *Scheduler) markActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active {
		s.active[id] = struct{}{}
	} else {
		delete(s.active, id)
	}
}
