// Package executor implements the Executor Framework: 30 fixed
// D{d}Q{q} executors, each an ordered METHOD_SEQUENCE dispatched by
// (dimension, question) coordinate rather than a class hierarchy.
//
// Grounded on tarsy's pkg/agent registry (a flat map of declaratively-
// configured agents keyed by name, dispatched without a base-class
// hierarchy — shared behavior lives in free functions over the config
// value) and pkg/queue/pool.go's per-worker circuit breaker, here
// generalized to per-executor (§5 "Circuit-breaker state is
// per-executor"). The flat-variant shape directly follows the
// "deep class hierarchies -> flat variant type" redesign direction:
// Executor is a plain struct with a fixed METHOD_SEQUENCE field, and
// Execute is a single dispatch function keyed by (dimension, question),
// not a method on a per-slot subtype.
package executor

import (
	"fmt"
	"sort"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// MethodStep is one (class, method) target in an executor's
// METHOD_SEQUENCE. Optional steps whose failure must not propagate
// beyond the executor are marked Optional, per §4.5's failure
// semantics.
type MethodStep struct {
	Class    string
	Method   string
	Optional bool
}

// Executor is one D{d}Q{q} executor: a fixed base slot plus its
// ordered METHOD_SEQUENCE. Immutable once constructed by NewExecutor.
type Executor struct {
	Slot           pdm.BaseSlot
	MethodSequence []MethodStep
}

// NewExecutor validates slot and sequence and returns an immutable
// Executor.
func NewExecutor(slot pdm.BaseSlot, sequence []MethodStep) (Executor, error) {
	if !slot.Valid() {
		return Executor{}, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	if len(sequence) == 0 {
		return Executor{}, fmt.Errorf("%w: %s has no method steps", ErrEmptySequence, slot)
	}
	return Executor{
		Slot:           slot,
		MethodSequence: append([]MethodStep(nil), sequence...),
	}, nil
}

// Framework is the registry of all D{d}Q{q} executors, loaded once at
// bootstrap. The zero value is not usable; construct with NewFramework.
type Framework struct {
	executors map[pdm.BaseSlot]Executor
}

// NewFramework returns an empty, mutable framework ready for Register
// calls.
func NewFramework() *Framework {
	return &Framework{executors: make(map[pdm.BaseSlot]Executor)}
}

// Register installs ex under its base slot. Registering the same slot
// twice is an error — there is no silent override.
func (f *Framework) Register(ex Executor) error {
	if _, dup := f.executors[ex.Slot]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSlot, ex.Slot)
	}
	f.executors[ex.Slot] = ex
	return nil
}

// For resolves slot to its registered Executor. Absence is always an
// error — there is no zero-value fallback.
func (f *Framework) For(slot pdm.BaseSlot) (Executor, error) {
	ex, ok := f.executors[slot]
	if !ok {
		return Executor{}, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	return ex, nil
}

// Len returns the number of registered executors.
func (f *Framework) Len() int { return len(f.executors) }

// Slots returns every registered base slot, sorted by (dimension,
// question) for deterministic iteration.
func (f *Framework) Slots() []pdm.BaseSlot {
	out := make([]pdm.BaseSlot, 0, len(f.executors))
	for s := range f.executors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		return out[i].Question < out[j].Question
	})
	return out
}

// defaultMethodSequence is the placeholder METHOD_SEQUENCE every
// canonical slot is built with: a three-step prepare/analyze/score
// sequence matching the READY -> PREPARING_ARGS -> EXECUTING_METHOD
// -> AGGREGATING -> DONE state machine at its simplest. Every slot
// gets this same sequence; nothing in this module reads per-slot
// sequences from the catalog or any other configuration.
var defaultMethodSequence = []MethodStep{
	{Class: "orchestrator", Method: "prepare_context"},
	{Class: "analyzer", Method: "match_elements"},
	{Class: "executor", Method: "score_evidence"},
}

// BuildCanonicalFramework returns the fixed 30 D{d}Q{q} executors,
// each installed with defaultMethodSequence.
func BuildCanonicalFramework() (*Framework, error) {
	f := NewFramework()
	for _, slot := range pdm.AllBaseSlots() {
		ex, err := NewExecutor(slot, defaultMethodSequence)
		if err != nil {
			return nil, err
		}
		if err := f.Register(ex); err != nil {
			return nil, err
		}
	}
	return f, nil
}
