package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventID_DeterministicForSameOperationAndInputs(t *testing.T) {
	a := eventID("phase4_execution", "run-1|boom")
	b := eventID("phase4_execution", "run-1|boom")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestEventID_DiffersAcrossOperationsOrInputs(t *testing.T) {
	base := eventID("phase4_execution", "run-1|boom")
	assert.NotEqual(t, base, eventID("phase5_bayes_update", "run-1|boom"))
	assert.NotEqual(t, base, eventID("phase4_execution", "run-2|boom"))
	assert.NotEqual(t, base, eventID("phase4_execution", "run-1|bang"))
}

func TestNewFailureRecord_NamesPhaseEventIDAndFixHint(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := newFailureRecord("run-1", PhaseExecution, errors.New("boom"), now)

	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, PhaseExecution, rec.Phase)
	assert.Equal(t, "boom", rec.Error)
	assert.NotEmpty(t, rec.EventID)
	assert.NotEmpty(t, rec.FixHint)
	assert.Equal(t, "2026-01-01T00:00:00Z", rec.TimestampUTC)
}

func TestFixHint_CoversEveryOrderedPhase(t *testing.T) {
	for _, phase := range orderedPhases {
		assert.NotEmpty(t, fixHint(phase), "phase %s should have a fix hint", phase)
	}
}

func TestWriteFailureRecord_WritesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	rec := newFailureRecord("run-1", PhaseSealing, errors.New("boom"), time.Now())

	require.NoError(t, writeFailureRecord(dir, rec))

	raw, err := os.ReadFile(filepath.Join(dir, "failure.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), rec.EventID)
	assert.Contains(t, string(raw), PhaseSealing)
}
