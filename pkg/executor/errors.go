package executor

import "errors"

var (
	// ErrUnknownSlot is raised when a base slot has no registered
	// Executor, or is structurally invalid.
	ErrUnknownSlot = errors.New("executor: unknown base slot")

	// ErrDuplicateSlot is raised by Register when a base slot already
	// has an Executor.
	ErrDuplicateSlot = errors.New("executor: duplicate base slot")

	// ErrEmptySequence is raised when an Executor is constructed with
	// no METHOD_SEQUENCE steps.
	ErrEmptySequence = errors.New("executor: empty method sequence")

	// ErrCircuitOpen is raised when Execute is called against an
	// executor whose circuit breaker is open.
	ErrCircuitOpen = errors.New("executor: circuit breaker open")

	// ErrContractViolation wraps the failure of a non-optional method
	// step, which aborts Execute: either a failure that is never retried
	// (unknown class or method, argument validation, instantiation) or
	// a method-body failure (methodexec.ErrInvocation) that persisted
	// through every retry.
	ErrContractViolation = errors.New("executor: contract violation")
)
