package executor

import (
	"sync"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/timeline"
)

// BreakerState is the circuit breaker's two-state machine: closed
// (calls allowed) or open (calls refused until the operator resets
// it — this module performs no automatic half-open probing, since
// spec.md §4.5 names only "opens after configurable consecutive
// failures", not a recovery protocol).
type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// CircuitBreaker is per-executor circuit-breaker state (§5
// "Circuit-breaker state is per-executor"): it opens after a
// configurable number of consecutive failures and records every state
// transition into a history bounded to the last historyLimit entries
// (§4.5; pkg/config's default limit is 100).
//
// Grounded on tarsy's pkg/queue/pool.go worker failure tracking,
// generalized from per-worker to per-executor and paired with
// pkg/timeline's BoundedHistory for the history cap.
type CircuitBreaker struct {
	mu sync.Mutex

	executorID          string
	threshold           int
	consecutiveFailures int
	state               BreakerState
	history             *timeline.BoundedHistory
	nextSeq             int
}

// NewCircuitBreaker constructs a closed CircuitBreaker for executorID,
// opening after threshold consecutive failures and retaining up to
// historyLimit state-transition events.
func NewCircuitBreaker(executorID string, threshold, historyLimit int) *CircuitBreaker {
	return &CircuitBreaker{
		executorID: executorID,
		threshold:  threshold,
		state:      BreakerClosed,
		history:    timeline.NewBoundedHistory(historyLimit),
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call against the guarded executor may
// proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == BreakerClosed
}

// RecordSuccess resets the consecutive-failure count and, if the
// breaker was open, closes it and logs the transition.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	if cb.state == BreakerOpen {
		cb.transition(timeline.EventCircuitClosed, BreakerClosed)
	}
}

// RecordFailure increments the consecutive-failure count and opens
// the breaker (logging the transition) once threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures++
	if cb.state == BreakerClosed && cb.consecutiveFailures >= cb.threshold {
		cb.transition(timeline.EventCircuitOpened, BreakerOpen)
	}
}

func (cb *CircuitBreaker) transition(eventType timeline.EventType, next BreakerState) {
	cb.state = next
	cb.nextSeq++
	cb.history.Append(timeline.Event{
		SequenceNumber: cb.nextSeq,
		TimestampUTC:   time.Now().UTC(),
		EventType:      eventType,
		ExecutorID:     cb.executorID,
		Metadata:       map[string]any{"consecutive_failures": cb.consecutiveFailures},
	})
}

// History returns the breaker's bounded state-transition history, in
// insertion order, oldest first.
func (cb *CircuitBreaker) History() []timeline.Event {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.history.Events()
}
