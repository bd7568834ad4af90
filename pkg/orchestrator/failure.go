package orchestrator

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FailureRecord is the structured artifact written alongside a failed
// run's timeline: which phase aborted the sequence, a reproducible
// event_id for correlating the failure across logs/tickets, and a
// human-readable hint at what to check first.
type FailureRecord struct {
	RunID        string `json:"run_id"`
	Phase        string `json:"phase"`
	EventID      string `json:"event_id"`
	Error        string `json:"error"`
	FixHint      string `json:"fix_hint"`
	TimestampUTC string `json:"timestamp_utc"`
}

// eventID computes SHA256(operation || inputs-digest)[:16] hex. operation
// is the failing phase's name; inputsDigest folds in everything that
// would make two failures of the same phase distinguishable (the run id
// and the error text) so the same defect reproduces the same event_id
// across runs, while an unrelated failure in the same phase does not.
func eventID(operation, inputsDigest string) string {
	sum := sha256.Sum256([]byte(operation + "|" + inputsDigest))
	return fmt.Sprintf("%x", sum[:])[:16]
}

// newFailureRecord builds the structured record for a phase failure.
func newFailureRecord(runID, phase string, phaseErr error, now time.Time) FailureRecord {
	return FailureRecord{
		RunID:        runID,
		Phase:        phase,
		EventID:      eventID(phase, runID+"|"+phaseErr.Error()),
		Error:        phaseErr.Error(),
		FixHint:      fixHint(phase),
		TimestampUTC: now.UTC().Format(time.RFC3339Nano),
	}
}

// fixHint maps a failing phase to the first thing an operator should
// check, grounded in what can actually go wrong in that phase.
func fixHint(phase string) string {
	switch phase {
	case PhaseBootstrap:
		return "confirm catalog.json, registry.json, and the executor framework agree on every required method and base slot"
	case PhaseIngestion:
		return "confirm the input document is non-empty and the configured extractor/embedder can read it"
	case PhaseChunking:
		return "confirm the ontology and label embeddings cover every policy area and dimension"
	case PhaseRouting:
		return "confirm the chunk router has a relevant-chunk strategy for every base slot in the questionnaire"
	case PhaseExecution:
		return "confirm every base slot has a registered executor and its circuit breaker is not open"
	case PhaseBayesUpdate:
		return "confirm method confidences reported by phase4 are within [0,1]"
	case PhaseScoring:
		return "confirm every question's modality (TypeA/TypeB) and thresholds are configured"
	case PhaseCollection:
		return "confirm phase6 produced a score for every routed question"
	case PhaseAggregation:
		return "confirm dispersion thresholds are configured and every cell has at least one scored question"
	case PhaseSealing:
		return "confirm every required phase reported success before sealing"
	case PhaseOutput:
		return "confirm the artifacts directory is writable and, if configured, the run ledger database is reachable"
	default:
		return "consult the phase timeline for the last successful step before this one"
	}
}

// writeFailureRecord writes failure.json into dir, overwriting any
// existing file. Unlike the proof pair, a failure record is advisory —
// callers should log a write error rather than treat it as fatal, since
// the run has already failed for an unrelated reason.
func writeFailureRecord(dir string, rec FailureRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating artifacts dir for failure record: %w", err)
	}
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshaling failure record: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "failure.json"), payload, 0o644)
}
