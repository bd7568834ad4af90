package manifest

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/seed"
)

// Environment is the fingerprint of the machine a run executed on.
// The python_version field name is kept verbatim because it is a
// required, fixed field name of the manifest schema (spec.md §6) even
// though this implementation is not Python — renaming the wire field
// would break manifest interoperability with any tooling that reads
// it by name. The Go field is named RuntimeVersion; only its JSON tag
// is pinned to the schema's name.
type Environment struct {
	RuntimeVersion string `json:"python_version"`
	Platform       string `json:"platform"`
	CPUCount       int    `json:"cpu_count"`
	MemoryBytes    int64  `json:"memory_bytes"`
}

// Determinism carries every seed issued during the run, for audit.
type Determinism struct {
	AllSeeds    map[string]uint64 `json:"all_seeds"`
	RNGAuditLog []seed.Entry      `json:"rng_audit_log"`
}

// Manifest is the VerificationManifest record (spec.md §3, §6): every
// field named there is present, with the integrity_hmac computed over
// the canonical JSON of every other field.
type Manifest struct {
	Version         string      `json:"version"`
	RunID           string      `json:"run_id"`
	TimestampUTC    string      `json:"timestamp_utc"`
	Success         bool        `json:"success"`
	PipelineHash    string      `json:"pipeline_hash"`
	CalibrationHash string      `json:"calibration_hash"`
	CatalogHash     string      `json:"catalog_hash"`
	MonolithHash    string      `json:"monolith_hash"`
	Seed            uint64      `json:"seed"`
	Environment     Environment `json:"environment"`
	Determinism     Determinism `json:"determinism"`
	PhaseSuccess    map[string]bool `json:"phase_success"`
	IntegrityHMAC   string      `json:"integrity_hmac"`
}

// Builder accumulates the fields of a Manifest across a run and seals
// it once every phase has reported in.
type Builder struct {
	m            Manifest
	requiredPhases []string
}

// NewBuilder starts a manifest for one run, stamping the caller-supplied
// run id and the current UTC timestamp. runID is never generated here:
// the manifest's run_id must trace back to the same identifier the
// caller used for session registration and the run ledger, and two
// builds with identical seed/hashes/runID must seal byte-identical
// manifests. requiredPhases names every phase that must report success
// before Seal will produce a manifest.
func NewBuilder(version, runID string, baseSeed uint64, pipelineHash, calibrationHash, catalogHash, monolithHash string, env Environment, requiredPhases []string, now time.Time) *Builder {
	return &Builder{
		m: Manifest{
			Version:         version,
			RunID:           runID,
			TimestampUTC:    now.UTC().Format(time.RFC3339Nano),
			PipelineHash:    pipelineHash,
			CalibrationHash: calibrationHash,
			CatalogHash:     catalogHash,
			MonolithHash:    monolithHash,
			Seed:            baseSeed,
			Environment:     env,
			PhaseSuccess:    make(map[string]bool),
		},
		requiredPhases: append([]string(nil), requiredPhases...),
	}
}

// RecordPhaseSuccess marks phase as having completed successfully.
func (b *Builder) RecordPhaseSuccess(phase string) {
	b.m.PhaseSuccess[phase] = true
}

// RecordPhaseFailure marks phase as having failed; Seal will refuse
// to produce a manifest while any required phase is absent or false.
func (b *Builder) RecordPhaseFailure(phase string) {
	b.m.PhaseSuccess[phase] = false
}

// allPhasesSucceeded reports whether every required phase reported
// success.
func (b *Builder) allPhasesSucceeded() bool {
	for _, p := range b.requiredPhases {
		if !b.m.PhaseSuccess[p] {
			return false
		}
	}
	return true
}

// Seal finalizes the manifest: stamps the determinism block from
// seeds, computes success as "every required phase succeeded", and
// signs the canonical JSON with hmacKey. Returns ErrIncompleteRun
// (and produces no manifest) if any required phase did not succeed —
// a run that did not fully succeed may never produce a sealed
// manifest or a proof.
func (b *Builder) Seal(seeds *seed.Registry, hmacKey []byte) (Manifest, error) {
	if !b.allPhasesSucceeded() {
		return Manifest{}, fmt.Errorf("%w: phases=%v", ErrIncompleteRun, sortedPhaseReport(b.m.PhaseSuccess))
	}

	allSeeds := make(map[string]uint64)
	for _, e := range seeds.AuditLog() {
		allSeeds[e.Component] = e.Seed
	}

	b.m.Success = true
	b.m.Determinism = Determinism{
		AllSeeds:    allSeeds,
		RNGAuditLog: seeds.AuditLog(),
	}

	unsigned := b.m
	unsigned.IntegrityHMAC = ""
	payload, err := CanonicalJSON(unsigned)
	if err != nil {
		return Manifest{}, err
	}

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(payload)
	b.m.IntegrityHMAC = fmt.Sprintf("%x", mac.Sum(nil))

	return b.m, nil
}

func sortedPhaseReport(phases map[string]bool) []string {
	keys := make([]string, 0, len(phases))
	for k := range phases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%v", k, phases[k])
	}
	return out
}

// Verify recomputes the HMAC over m's canonical JSON (with
// integrity_hmac cleared) using hmacKey and compares it against m's
// recorded value.
func Verify(m Manifest, hmacKey []byte) error {
	recorded := m.IntegrityHMAC
	m.IntegrityHMAC = ""

	payload, err := CanonicalJSON(m)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(payload)
	expected := fmt.Sprintf("%x", mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(recorded)) {
		return ErrHMACMismatch
	}
	return nil
}
