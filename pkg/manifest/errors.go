// Package manifest builds and verifies the VerificationManifest: the
// HMAC-signed, canonically-serialized record whose presence and
// validity are the sole criterion for declaring a pipeline run
// verified.
//
// Grounded on the ent schema field-comment documentation style (each
// field's purpose stated inline) and the canonical-JSON idiom used
// throughout tarsy's deterministic-serialization-sensitive boundaries.
package manifest

import "errors"

var (
	// ErrIncompleteRun is returned when Seal is called before every
	// phase has reported success — no manifest/proof may be produced
	// for a run that has not fully succeeded.
	ErrIncompleteRun = errors.New("manifest: incomplete run")

	// ErrHMACMismatch is returned by Verify when the recomputed HMAC
	// does not match the manifest's recorded integrity_hmac.
	ErrHMACMismatch = errors.New("manifest: hmac mismatch")

	// ErrMalformed is returned when a manifest fails to parse or is
	// missing a required field.
	ErrMalformed = errors.New("manifest: malformed")
)
