package orchestrator

import "github.com/pdmcolombia/pdmaudit/pkg/aggregate"

// DimensionResult, AreaResult, ClusterResult, and MacroResult name the
// four cascade tiers at the orchestrator's API boundary. They are
// plain aliases of pkg/aggregate's tier types — the orchestrator adds
// no fields of its own, it only decides which Members feed each fold.
type (
	DimensionResult = aggregate.DimensionScore
	AreaResult      = aggregate.AreaScore
	ClusterResult   = aggregate.ClusterScore
	MacroResult     = aggregate.MacroScore
)

// aggregationScale is the fixed neutral-point scale every cascade tier
// is scored against for contradiction sign-detection (§4.8). The
// per-question TYPE_B scale is a property of the individual question
// (spec.md §3 names both a [0,3] and a [0,1] convention); the cascade
// itself needs one fixed convention to compare scores across mixed
// TYPE_A/TYPE_B siblings, so this orchestrator standardizes on [0,3]
// for sign purposes only — it does not rescale the scores themselves,
// only the midpoint used to classify a score as positive or negative.
const aggregationScale = 3.0
