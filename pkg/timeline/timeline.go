// Package timeline records an ordered, append-only log of phase and
// executor transitions for one pipeline run (spec §6's runtime
// metrics, §4.5's circuit breaker state-transition history bounded to
// the last 100 entries).
//
// Grounded on tarsy's pkg/agent/controller/timeline.go and
// pkg/services/timeline_service.go (sequence-numbered event records
// created as an investigation progresses), generalized from
// WebSocket-published LLM investigation events to an in-process,
// persistence-agnostic transition log — this module has no dashboard
// to stream to, so the publish step is dropped and only the ordered
// log itself is kept.
package timeline

import (
	"sync"
	"time"
)

// EventType names the kind of transition recorded.
type EventType string

const (
	EventPhaseStarted    EventType = "phase_started"
	EventPhaseCompleted  EventType = "phase_completed"
	EventPhaseFailed     EventType = "phase_failed"
	EventExecutorStarted EventType = "executor_started"
	EventExecutorDone    EventType = "executor_done"
	EventCircuitOpened   EventType = "circuit_opened"
	EventCircuitClosed   EventType = "circuit_closed"
)

// Event is one sequence-numbered transition record.
type Event struct {
	SequenceNumber int            `json:"sequence_number"`
	TimestampUTC   time.Time      `json:"timestamp_utc"`
	RunID          string         `json:"run_id"`
	EventType      EventType      `json:"event_type"`
	Phase          string         `json:"phase"`
	ExecutorID     string         `json:"executor_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Log is an ordered, append-only timeline for one run. It is safe for
// concurrent use.
type Log struct {
	runID string

	mu     sync.Mutex
	events []Event
	nextSeq int
}

// NewLog creates an empty timeline for runID.
func NewLog(runID string) *Log {
	return &Log{runID: runID}
}

// Append records a new event, assigning it the next sequence number.
func (l *Log) Append(eventType EventType, phase, executorID string, metadata map[string]any) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	event := Event{
		SequenceNumber: l.nextSeq,
		TimestampUTC:   time.Now().UTC(),
		RunID:          l.runID,
		EventType:      eventType,
		Phase:          phase,
		ExecutorID:     executorID,
		Metadata:       metadata,
	}
	l.events = append(l.events, event)
	return event
}

// Events returns a copy of every event recorded so far, in sequence order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// BoundedHistory is a fixed-capacity, append-only ring buffer used for
// the circuit breaker's state-transition history (§4.5, "bounded to
// last 100"): once full, the oldest entry is dropped as a new one
// arrives.
type BoundedHistory struct {
	limit int

	mu     sync.Mutex
	events []Event
}

// NewBoundedHistory constructs a history capped at limit entries.
func NewBoundedHistory(limit int) *BoundedHistory {
	if limit < 1 {
		limit = 1
	}
	return &BoundedHistory{limit: limit}
}

// Append records event, evicting the oldest entry if the history is
// already at capacity.
func (h *BoundedHistory) Append(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if len(h.events) > h.limit {
		h.events = h.events[len(h.events)-h.limit:]
	}
}

// Events returns a copy of the retained events, oldest first.
func (h *BoundedHistory) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

// Len returns the number of events currently retained (<= limit).
func (h *BoundedHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}
