package methodexec

import "errors"

var (
	// ErrUnknownClass is returned when Execute targets a class with no
	// registered loader.
	ErrUnknownClass = errors.New("methodexec: unknown class")

	// ErrUnknownMethod is returned when Execute targets a method not
	// found on an otherwise-known class instance.
	ErrUnknownMethod = errors.New("methodexec: unknown method")

	// ErrInstantiation wraps a failure from a class's loader function.
	// The failure is isolated to that class; other classes remain usable.
	ErrInstantiation = errors.New("methodexec: instantiation failed")

	// ErrInvocation wraps a failure raised by the method itself.
	ErrInvocation = errors.New("methodexec: invocation failed")

	// ErrArgumentValidation is raised by ArgRouter for an unknown,
	// missing-required, or forbidden-but-supplied kwarg. Silent drops
	// are never permitted.
	ErrArgumentValidation = errors.New("methodexec: argument validation failed")
)
