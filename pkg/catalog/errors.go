package catalog

import "errors"

var (
	// ErrMissingMethod is raised by Lookup for a method_id the catalog
	// does not contain. Per spec, absence is never silently tolerated.
	ErrMissingMethod = errors.New("catalog: missing method")

	// ErrMalformedEntry is raised when a catalog payload fails to parse
	// or contains a structurally invalid or duplicate entry.
	ErrMalformedEntry = errors.New("catalog: malformed entry")
)
