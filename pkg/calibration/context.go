package calibration

import "github.com/pdmcolombia/pdmaudit/pkg/pdm"

// Positional buckets the method's position within its executor's
// METHOD_SEQUENCE into early/middle/late thirds.
type Positional string

const (
	PositionEarly  Positional = "early"
	PositionMiddle Positional = "middle"
	PositionLate   Positional = "late"
)

// Bucket maps a fractional position in [0,1] to its Positional
// bucket: [0, 1/3) early, [1/3, 2/3) middle, [2/3, 1] late.
func Bucket(fraction float64) Positional {
	switch {
	case fraction < 1.0/3.0:
		return PositionEarly
	case fraction < 2.0/3.0:
		return PositionMiddle
	default:
		return PositionLate
	}
}

// CalibrationContext is the immutable tuple carried into resolve(),
// per spec.md §3.
type CalibrationContext struct {
	QuestionID     string
	Dimension      pdm.Dimension
	PolicyArea     pdm.PolicyArea
	UnitOfAnalysis string
	MethodPosition int
	TotalMethods   int
}

// PositionFraction returns ctx.MethodPosition / max(1, TotalMethods-1),
// the fraction used to bucket the positional modifier.
func (ctx CalibrationContext) PositionFraction() float64 {
	denom := ctx.TotalMethods - 1
	if denom < 1 {
		denom = 1
	}
	return float64(ctx.MethodPosition) / float64(denom)
}

// PositionalBucket returns the early/middle/late bucket for ctx.
func (ctx CalibrationContext) PositionalBucket() Positional {
	return Bucket(ctx.PositionFraction())
}

// Modifiers is the set of multiplicative adjustments applied to a
// base calibration's linear weights at resolution time. Each map may
// be nil or partial; an absent key contributes a multiplier of 1
// (no adjustment).
type Modifiers struct {
	ByDimension  map[pdm.Dimension]float64
	ByPolicyArea map[pdm.PolicyArea]float64
	ByUnit       map[string]float64
	ByPosition   map[Positional]float64
}

func lookupOrOne[K comparable](m map[K]float64, key K) float64 {
	if m == nil {
		return 1
	}
	if v, ok := m[key]; ok {
		return v
	}
	return 1
}

// Factor computes the combined multiplier for ctx: the product of the
// dimension, policy-area, unit, and positional modifiers applicable to
// ctx, per §4.2.
func (m Modifiers) Factor(ctx CalibrationContext) float64 {
	f := 1.0
	f *= lookupOrOne(m.ByDimension, ctx.Dimension)
	f *= lookupOrOne(m.ByPolicyArea, ctx.PolicyArea)
	f *= lookupOrOne(m.ByUnit, ctx.UnitOfAnalysis)
	f *= lookupOrOne(m.ByPosition, ctx.PositionalBucket())
	return f
}
