package questionnaire

import "errors"

var (
	// ErrMalformedEntry is raised when a questionnaire payload fails to
	// parse or contains a structurally invalid or duplicate entry.
	ErrMalformedEntry = errors.New("questionnaire: malformed entry")

	// ErrMissingQuestion is raised by Lookup for a global id the bundle
	// does not contain.
	ErrMissingQuestion = errors.New("questionnaire: missing question")

	// ErrUnknownPolicyArea is raised when a question or cluster
	// assignment names a policy area outside the fixed ten.
	ErrUnknownPolicyArea = errors.New("questionnaire: unknown policy area")
)
