package methodexec

// BuildBaselineRouter declares the kwarg contract for the three
// built-in baseline methods BuildBaselineRegistry installs: every one
// of them accepts chunk_id/chunk_text (always supplied by
// pkg/executor's buildArgs) and the optional calibrated_score.
func BuildBaselineRouter() *ArgRouter {
	router := NewArgRouter()
	route := Route{
		Required: []string{"chunk_id", "chunk_text"},
		Optional: []string{"calibrated_score"},
	}
	for _, class := range []string{"orchestrator", "analyzer", "executor"} {
		router.RegisterFastPath(class, baselineMethodFor(class), route)
	}
	return router
}

func baselineMethodFor(class string) string {
	switch class {
	case "orchestrator":
		return "prepare_context"
	case "analyzer":
		return "match_elements"
	default:
		return "score_evidence"
	}
}

// BuildBaselineRegistry installs a generic, catalog-agnostic baseline
// implementation for the three method-sequence steps
// pkg/executor.defaultMethodSequence dispatches through
// (orchestrator.prepare_context, analyzer.match_elements,
// executor.score_evidence).
//
// The method bodies behind a cataloged method_id are, per §4.4,
// operator-supplied: pkg/executor's buildArgs only ever hands a method
// the chunk identity/text and its context-resolved calibrated score,
// deliberately leaving the concrete element-matching business logic
// external to this module. This baseline is the out-of-the-box
// behavior when no operator has registered anything richer: it reports
// no matched elements of its own and forwards calibrated_score as the
// method's confidence, so a run still completes and scores end to end
// on the calibration signal alone. Operators replace any of these
// three with RegisterClass/InjectMethod before constructing the
// orchestrator, the same hot-fix hook pkg/methodexec/registry.go
// documents for tests.
func BuildBaselineRegistry(router *ArgRouter) *Registry {
	reg := NewRegistry(router)

	noopLoader := func() (any, error) { return struct{}{}, nil }
	reg.RegisterClass("orchestrator", noopLoader)
	reg.RegisterClass("analyzer", noopLoader)
	reg.RegisterClass("executor", noopLoader)

	reg.InjectMethod("orchestrator", "prepare_context", func(_ any, args Args) (any, error) {
		text, _ := args["chunk_text"].(string)
		return text, nil
	})

	reg.InjectMethod("analyzer", "match_elements", func(_ any, _ Args) (any, error) {
		return []string{}, nil
	})

	reg.InjectMethod("executor", "score_evidence", func(_ any, args Args) (any, error) {
		confidence := 0.0
		if score, ok := args["calibrated_score"].(float64); ok {
			confidence = score
		}
		return map[string]any{"elements": []string{}, "confidence": confidence}, nil
	})

	return reg
}
