package aggregate

import "errors"

var (
	// ErrValidation is raised when an aggregator's input set is missing
	// a required column/field. There is no silent skip.
	ErrValidation = errors.New("aggregate: validation error")

	// ErrEmptyGroup is raised when an aggregator is asked to fold zero
	// members — a dimension/area/cluster with no children is a
	// structural defect upstream, not a zero score.
	ErrEmptyGroup = errors.New("aggregate: empty group")
)
