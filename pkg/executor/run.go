package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdmcolombia/pdmaudit/pkg/calibration"
	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/methodexec"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
)

// RunConfig carries the per-step retry count. No per-step timeout is
// applied: ExecutionConfig.MethodTimeout is validated at load but not
// passed to Execute, method invocations take no context, and ctx is
// checked only before each step, so the only deadline a step sees is
// the phase budget the orchestrator puts on ctx.
type RunConfig struct {
	Retry int
}

// Result is one executor invocation's output: the merged Evidence
// across every relevant chunk, and whether it fell back to a single
// full-document run because no chunk was relevant.
type Result struct {
	Evidence        scoring.Evidence
	FullDocFallback bool
}

// Execute runs ex's METHOD_SEQUENCE against policy area pa, over every
// chunk router finds relevant in graph. Evidence from multiple chunks
// is merged by element union with deduplication and raw-output merge,
// per §4.5. If no chunk is relevant, a single synthetic full-document
// run is performed instead and Result.FullDocFallback is set.
//
// If cb is non-nil and its breaker is open, Execute refuses
// immediately with ErrCircuitOpen. A non-optional step's failure opens
// the breaker (if cb is set) and aborts the run with ErrContractViolation;
// an optional step's failure is swallowed and execution continues.
func Execute(
	ctx context.Context,
	ex Executor,
	pa pdm.PolicyArea,
	requiredElements []string,
	graph chunk.ChunkGraph,
	router *ChunkRouter,
	reg *methodexec.Registry,
	cal *calibration.Registry,
	unitOfAnalysis string,
	cfg RunConfig,
	cb *CircuitBreaker,
) (Result, error) {
	if cb != nil && !cb.Allow() {
		return Result{}, fmt.Errorf("%w: %s", ErrCircuitOpen, ex.Slot)
	}

	relevant := router.RelevantChunks(ex.Slot, pa, graph)
	fallback := false
	if len(relevant) == 0 {
		fallback = true
		relevant = []chunk.Chunk{syntheticFullDocumentChunk(pa, ex.Slot)}
	}

	matched := map[string]bool{}
	rawResults := map[string]any{}
	confidence := map[string]float64{}

	for _, c := range relevant {
		for i, step := range ex.MethodSequence {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			default:
			}

			calCtx := calibration.CalibrationContext{
				QuestionID:     ex.Slot.String(),
				Dimension:      ex.Slot.Dimension,
				PolicyArea:     pa,
				UnitOfAnalysis: unitOfAnalysis,
				MethodPosition: i,
				TotalMethods:   len(ex.MethodSequence),
			}

			out, err := runStepWithRetry(reg, cal, step, c, calCtx, cfg.Retry)
			if err != nil {
				if step.Optional {
					continue
				}
				if cb != nil {
					cb.RecordFailure()
				}
				return Result{}, fmt.Errorf("%w: %s.%s on chunk %s: %v", ErrContractViolation, step.Class, step.Method, c.ID, err)
			}

			mergeStepOutput(step, c, out, matched, rawResults, confidence)
		}
	}

	if cb != nil {
		cb.RecordSuccess()
	}

	elements := make([]string, 0, len(matched))
	for k := range matched {
		elements = append(elements, k)
	}

	return Result{
		Evidence: scoring.Evidence{
			MatchedElements:  elements,
			RequiredElements: append([]string(nil), requiredElements...),
			RawResults:       rawResults,
			MethodConfidence: confidence,
		},
		FullDocFallback: fallback,
	}, nil
}

// runStepWithRetry invokes one method step, retrying up to retry
// additional times on a transient failure. Contract violations
// (unknown class/method, argument validation, instantiation failure)
// are never retried — only methodexec.ErrInvocation, which wraps a
// failure raised by the method body itself and may be transient I/O.
func runStepWithRetry(reg *methodexec.Registry, cal *calibration.Registry, step MethodStep, c chunk.Chunk, calCtx calibration.CalibrationContext, retry int) (any, error) {
	args := buildArgs(step, c, calCtx, cal)

	var lastErr error
	for attempt := 0; attempt <= retry; attempt++ {
		out, err := reg.Execute(step.Class, step.Method, args)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, methodexec.ErrInvocation) {
			return nil, err
		}
	}
	return nil, lastErr
}

// buildArgs assembles the kwargs passed to one method invocation: the
// chunk identity/text, and, when a calibration registry is wired, the
// context-resolved calibrated score for this (class.method, calCtx)
// pair. A missing calibration entry is tolerated here (not every
// method requires one); that every method the catalog marks
// requires_calibration has an entry is checked once per run by the
// orchestrator's bootstrap phase (Registry.RequireAll), not at call
// time here.
func buildArgs(step MethodStep, c chunk.Chunk, calCtx calibration.CalibrationContext, cal *calibration.Registry) methodexec.Args {
	args := methodexec.Args{
		"chunk_id":   c.ID,
		"chunk_text": c.Text,
	}
	if cal != nil {
		methodID := fmt.Sprintf("%s.%s", step.Class, step.Method)
		inputs := deriveLayerInputs(c, calCtx)
		if score, err := cal.Calibrate(methodID, calCtx, inputs); err == nil {
			args["calibrated_score"] = score
		}
	}
	return args
}

// deriveLayerInputs computes the eight-layer calibration input vector
// for chunk c under calCtx. Each layer is a deterministic function of
// features already present on the chunk and the calibration context,
// since this module's method bodies are operator-supplied and the
// concrete feature extraction behind each layer is out of scope here
// — this gives every wired method a complete, valid LayerInputs to
// calibrate against.
func deriveLayerInputs(c chunk.Chunk, calCtx calibration.CalibrationContext) calibration.LayerInputs {
	clamp01 := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}

	hasChain := 0.0
	if len(c.CausalEdges) > 0 {
		hasChain = 1.0
	}
	dimensionMatch := 0.0
	if c.Dimension == calCtx.Dimension {
		dimensionMatch = 1.0
	}
	domainMatch := 0.0
	if c.PolicyArea == calCtx.PolicyArea {
		domainMatch = 1.0
	}
	congruence := 0.5
	if c.ArgumentativeRole != chunk.RoleUnassigned {
		congruence = 1.0
	}
	metaEvidence := 0.0
	if len(c.TemporalMarkers) > 0 {
		metaEvidence = 1.0
	}
	unitCoverage := c.Provenance.Completeness()

	return calibration.LayerInputs{
		calibration.LayerBase:       clamp01(c.Coherence),
		calibration.LayerChain:      hasChain,
		calibration.LayerUnit:       clamp01(unitCoverage),
		calibration.LayerQuestion:   dimensionMatch,
		calibration.LayerDomain:     domainMatch,
		calibration.LayerProcessing: clamp01(calCtx.PositionFraction()),
		calibration.LayerCongruence: congruence,
		calibration.LayerMeta:       metaEvidence,
	}
}

// mergeStepOutput folds one method's output into the running matched-
// elements set, raw-results map, and per-method confidence map. The
// method's result is expected to be either a []string of matched
// element keys, a single string element key, or a map[string]any
// whose "elements" key holds either form — anything else is recorded
// verbatim under rawResults with no element contribution, since the
// element-union contract only applies to methods that report elements.
func mergeStepOutput(step MethodStep, c chunk.Chunk, out any, matched map[string]bool, rawResults map[string]any, confidence map[string]float64) {
	key := fmt.Sprintf("%s.%s", step.Class, step.Method)
	rawKey := fmt.Sprintf("%s@%s", key, c.ID)
	rawResults[rawKey] = out

	for _, el := range extractElements(out) {
		matched[canonicalKey(el)] = true
	}

	if conf, ok := extractConfidence(out); ok {
		confidence[key] = conf
	}
}

// canonicalKey normalizes an element key for deduplication: trimmed,
// lowercased.
func canonicalKey(el string) string {
	return strings.ToLower(strings.TrimSpace(el))
}

func extractElements(out any) []string {
	switch v := out.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case map[string]any:
		if raw, ok := v["elements"]; ok {
			return extractElements(raw)
		}
	}
	return nil
}

func extractConfidence(out any) (float64, bool) {
	m, ok := out.(map[string]any)
	if !ok {
		return 0, false
	}
	conf, ok := m["confidence"]
	if !ok {
		return 0, false
	}
	f, ok := conf.(float64)
	return f, ok
}

// syntheticFullDocumentChunk builds the placeholder chunk used when no
// routed chunk is relevant to (pa, slot.Dimension): the executor's
// fallback full-document run (§4.5 "full_doc_executions").
func syntheticFullDocumentChunk(pa pdm.PolicyArea, slot pdm.BaseSlot) chunk.Chunk {
	return chunk.Chunk{
		ID:         fmt.Sprintf("full-doc-%s-%s", pa, slot),
		PolicyArea: pa,
		Dimension:  slot.Dimension,
		Provenance: chunk.Provenance{PageStart: 1, PageEnd: 1, Offsets: []chunk.Offset{{Start: 0, End: 0}}},
	}
}
