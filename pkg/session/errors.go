// Package session tracks one pipeline execution (a "run") through
// phases 0–10 (spec §5), generalizing tarsy's AlertSession/
// session_service.go lifecycle and pkg/queue/pool.go's session cancel
// registry from "alert investigation session" to "PDM audit run".
package session

import "errors"

var (
	// ErrNotFound indicates no run with the given ID is registered.
	ErrNotFound = errors.New("session: run not found")

	// ErrAlreadyExists indicates a run with the given ID is already registered.
	ErrAlreadyExists = errors.New("session: run already exists")

	// ErrInvalidTransition indicates a status transition is not permitted
	// from the run's current status.
	ErrInvalidTransition = errors.New("session: invalid status transition")
)
