package calibration

import "errors"

var (
	// ErrContractViolation covers malformed layer inputs: missing
	// layers, out-of-range values, or resolution against an unknown
	// context field.
	ErrContractViolation = errors.New("calibration: contract violation")

	// ErrMissingCalibration is raised when a method with
	// requires_calibration=true has no registry entry.
	ErrMissingCalibration = errors.New("calibration: missing calibration")

	// ErrConfigError is raised at registry load time when a
	// MethodCalibration's weights violate the non-negativity,
	// boundedness, or monotonicity constraints.
	ErrConfigError = errors.New("calibration: configuration error")

	// ErrOutOfRange is raised when a Choquet fusion result (base or
	// context-resolved) falls outside [0,1] — this means the weights
	// are miswired and must be fixed, never silently clamped.
	ErrOutOfRange = errors.New("calibration: result out of [0,1]")
)
