package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/methodexec"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSlot = pdm.BaseSlot{Dimension: pdm.D1Insumos, Question: 1}

func TestNewExecutor_RejectsInvalidSlot(t *testing.T) {
	_, err := NewExecutor(pdm.BaseSlot{Dimension: "D9", Question: 1}, defaultMethodSequence)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestNewExecutor_RejectsEmptySequence(t *testing.T) {
	_, err := NewExecutor(testSlot, nil)
	assert.ErrorIs(t, err, ErrEmptySequence)
}

func TestFramework_RegisterAndFor(t *testing.T) {
	f := NewFramework()
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	require.NoError(t, f.Register(ex))

	got, err := f.For(testSlot)
	require.NoError(t, err)
	assert.Equal(t, testSlot, got.Slot)
}

func TestFramework_Register_RejectsDuplicateSlot(t *testing.T) {
	f := NewFramework()
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	require.NoError(t, f.Register(ex))

	err = f.Register(ex)
	assert.ErrorIs(t, err, ErrDuplicateSlot)
}

func TestFramework_For_ReturnsUnknownSlotForUnregistered(t *testing.T) {
	f := NewFramework()
	_, err := f.For(testSlot)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestBuildCanonicalFramework_Has30Executors(t *testing.T) {
	f, err := BuildCanonicalFramework()
	require.NoError(t, err)
	assert.Equal(t, 30, f.Len())
}

func TestBuildCanonicalFramework_SlotsAreSorted(t *testing.T) {
	f, err := BuildCanonicalFramework()
	require.NoError(t, err)
	slots := f.Slots()
	for i := 1; i < len(slots); i++ {
		prev, cur := slots[i-1], slots[i]
		assert.True(t, prev.Dimension < cur.Dimension || (prev.Dimension == cur.Dimension && prev.Question < cur.Question))
	}
}

func TestClassifyChunkType_TemporalOverridesDimension(t *testing.T) {
	c := chunk.Chunk{Dimension: pdm.D2Actividades, TemporalMarkers: []string{"2026"}}
	assert.Equal(t, ChunkTemporal, ClassifyChunkType(c))
}

func TestClassifyChunkType_FallsBackToDimensionDefault(t *testing.T) {
	c := chunk.Chunk{Dimension: pdm.D1Insumos}
	assert.Equal(t, ChunkResource, ClassifyChunkType(c))
}

func TestDefaultChunkRouter_MapsEverySlot(t *testing.T) {
	router := DefaultChunkRouter()
	for _, slot := range pdm.AllBaseSlots() {
		ct := dimensionChunkType[slot.Dimension]
		assert.NotEmpty(t, ct)
		assert.True(t, router.IsRelevant(slot, ct))
	}
}

func TestChunkRouter_RelevantChunks_FiltersByCellAndType(t *testing.T) {
	router := DefaultChunkRouter()
	graph := chunk.ChunkGraph{Chunks: []chunk.Chunk{
		{ID: "c1", PolicyArea: pdm.PA01, Dimension: pdm.D1Insumos},
		{ID: "c2", PolicyArea: pdm.PA02, Dimension: pdm.D1Insumos},
		{ID: "c3", PolicyArea: pdm.PA01, Dimension: pdm.D2Actividades},
	}}

	relevant := router.RelevantChunks(testSlot, pdm.PA01, graph)
	require.Len(t, relevant, 1)
	assert.Equal(t, "c1", relevant[0].ID)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("D1Q1", 2, 100)
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, BreakerClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsAndClosesFromOpen(t *testing.T) {
	cb := NewCircuitBreaker("D1Q1", 1, 100)
	cb.RecordFailure()
	require.Equal(t, BreakerOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_HistoryRecordsTransitions(t *testing.T) {
	cb := NewCircuitBreaker("D1Q1", 1, 100)
	cb.RecordFailure()
	cb.RecordSuccess()

	history := cb.History()
	require.Len(t, history, 2)
	assert.Equal(t, "D1Q1", history[0].ExecutorID)
}

func buildTestChunkGraph() chunk.ChunkGraph {
	return chunk.ChunkGraph{Chunks: []chunk.Chunk{
		{
			ID:         "c1",
			Text:       "presupuesto asignado",
			PolicyArea: pdm.PA01,
			Dimension:  pdm.D1Insumos,
			Coherence:  0.8,
			Provenance: chunk.Provenance{PageStart: 1, PageEnd: 1, Offsets: []chunk.Offset{{Start: 0, End: 10}}},
		},
	}}
}

func buildTestRegistry(t *testing.T, fail bool) *methodexec.Registry {
	t.Helper()
	reg := methodexec.NewRegistry(nil)
	for _, step := range defaultMethodSequence {
		reg.RegisterClass(step.Class, func() (any, error) { return struct{}{}, nil })
	}
	reg.InjectMethod("orchestrator", "prepare_context", func(_ any, _ methodexec.Args) (any, error) {
		return "budget_line", nil
	})
	reg.InjectMethod("analyzer", "match_elements", func(_ any, _ methodexec.Args) (any, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return []string{"responsible_agency"}, nil
	})
	reg.InjectMethod("executor", "score_evidence", func(_ any, _ methodexec.Args) (any, error) {
		return map[string]any{"elements": []string{"D1Q1_element_1"}, "confidence": 0.9}, nil
	})
	return reg
}

func TestExecute_MergesEvidenceAcrossMethodSteps(t *testing.T) {
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	reg := buildTestRegistry(t, false)
	router := DefaultChunkRouter()
	graph := buildTestChunkGraph()

	result, err := Execute(context.Background(), ex, pdm.PA01, []string{"budget_line", "responsible_agency"}, graph, router, reg, nil, "municipality", RunConfig{Retry: 0}, nil)
	require.NoError(t, err)
	assert.False(t, result.FullDocFallback)
	assert.ElementsMatch(t, []string{"budget_line", "responsible_agency", "d1q1_element_1"}, result.Evidence.MatchedElements)
}

func TestExecute_FallsBackToFullDocumentWhenNoChunkRelevant(t *testing.T) {
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	reg := buildTestRegistry(t, false)
	router := DefaultChunkRouter()
	graph := chunk.ChunkGraph{} // no chunks at all

	result, err := Execute(context.Background(), ex, pdm.PA01, []string{"budget_line"}, graph, router, reg, nil, "municipality", RunConfig{Retry: 0}, nil)
	require.NoError(t, err)
	assert.True(t, result.FullDocFallback)
}

func TestExecute_NonOptionalFailureIsFatalAndOpensBreaker(t *testing.T) {
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	reg := buildTestRegistry(t, true)
	router := DefaultChunkRouter()
	graph := buildTestChunkGraph()
	cb := NewCircuitBreaker(testSlot.String(), 1, 100)

	_, err = Execute(context.Background(), ex, pdm.PA01, []string{"budget_line"}, graph, router, reg, nil, "municipality", RunConfig{Retry: 0}, cb)
	require.ErrorIs(t, err, ErrContractViolation)
	assert.Equal(t, BreakerOpen, cb.State())
}

func TestExecute_RefusesWhenCircuitOpen(t *testing.T) {
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	reg := buildTestRegistry(t, false)
	router := DefaultChunkRouter()
	graph := buildTestChunkGraph()
	cb := NewCircuitBreaker(testSlot.String(), 1, 100)
	cb.RecordFailure()
	require.Equal(t, BreakerOpen, cb.State())

	_, err = Execute(context.Background(), ex, pdm.PA01, []string{"budget_line"}, graph, router, reg, nil, "municipality", RunConfig{Retry: 0}, cb)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_OptionalStepFailureIsSwallowed(t *testing.T) {
	slot := pdm.BaseSlot{Dimension: pdm.D1Insumos, Question: 2}
	sequence := []MethodStep{
		{Class: "orchestrator", Method: "prepare_context"},
		{Class: "analyzer", Method: "match_elements", Optional: true},
		{Class: "executor", Method: "score_evidence"},
	}
	ex, err := NewExecutor(slot, sequence)
	require.NoError(t, err)
	reg := buildTestRegistry(t, true) // match_elements fails
	router := DefaultChunkRouter()
	graph := buildTestChunkGraph()
	graph.Chunks[0].Dimension = slot.Dimension

	result, err := Execute(context.Background(), ex, pdm.PA01, []string{"budget_line"}, graph, router, reg, nil, "municipality", RunConfig{Retry: 0}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Evidence.MatchedElements, "d1q1_element_1")
}

func TestExecute_RespectsContextCancellation(t *testing.T) {
	ex, err := NewExecutor(testSlot, defaultMethodSequence)
	require.NoError(t, err)
	reg := buildTestRegistry(t, false)
	router := DefaultChunkRouter()
	graph := buildTestChunkGraph()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Execute(ctx, ex, pdm.PA01, []string{"budget_line"}, graph, router, reg, nil, "municipality", RunConfig{Retry: 0}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
