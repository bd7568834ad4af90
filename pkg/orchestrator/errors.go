package orchestrator

import "errors"

var (
	// ErrPhaseFailed wraps the first fatal error encountered in a
	// named phase, aborting the Phase0 -> ... -> Phase10 sequence.
	ErrPhaseFailed = errors.New("orchestrator: phase failed")

	// ErrMissingExecutor indicates a questionnaire question names a
	// base slot the executor framework has no registered Executor for.
	ErrMissingExecutor = errors.New("orchestrator: missing executor for base slot")

	// ErrEmptyDocument is returned when Run is given a zero-length
	// document to ingest.
	ErrEmptyDocument = errors.New("orchestrator: empty document")
)
