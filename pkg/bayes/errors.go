package bayes

import "errors"

// Sentinel errors for the bayes package, in the style of tarsy's
// pkg/config/errors.go: unexported construction, exported sentinels
// for errors.Is matching.
var (
	// ErrInvalidTest is returned when a ProbativeTest's sensitivity or
	// specificity falls outside [0,1].
	ErrInvalidTest = errors.New("bayes: invalid probative test")

	// ErrInvalidInput is returned for malformed call arguments: a prior
	// outside [0,1], a mismatched weights slice, or an empty score set.
	ErrInvalidInput = errors.New("bayes: invalid input")
)
