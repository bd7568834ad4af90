// Package bayes implements the Bayesian evidence engine: exact prior/
// posterior updates over probative tests, dispersion penalties over
// sibling scores, and the weighted-mean-then-penalize rollup used by
// the aggregation cascade.
//
// Grounded on the weighted-scoring/dispersion shape in
// other_examples/21096eac_ingo-eichhorst-agent-readyness__internal-scoring-scorer.go.go,
// generalized to the exact Bayesian update spec.md §4.6 requires.
package bayes

import (
	"fmt"
	"math"
	"sort"
)

// TestKind names the four canonical probative-test archetypes.
type TestKind string

const (
	KindStrawInTheWind TestKind = "straw_in_the_wind" // high sensitivity, low specificity
	KindHoop           TestKind = "hoop"               // high sensitivity, moderate specificity
	KindSmokingGun     TestKind = "smoking_gun"         // low sensitivity, high specificity
	KindDoublyDecisive TestKind = "doubly_decisive"     // high sensitivity, high specificity
)

// ProbativeTest is a Bayesian test characterized by sensitivity and
// specificity, both in [0,1]. It is a pure value type: constructing
// one never validates against a live hypothesis, only the ranges.
type ProbativeTest struct {
	Kind        TestKind
	Sensitivity float64 // s: P(pass | H true)
	Specificity float64 // t: P(fail | H false)
}

// NewProbativeTest constructs a test, validating s and t are in [0,1].
func NewProbativeTest(kind TestKind, sensitivity, specificity float64) (ProbativeTest, error) {
	if sensitivity < 0 || sensitivity > 1 {
		return ProbativeTest{}, fmt.Errorf("%w: sensitivity %v out of [0,1]", ErrInvalidTest, sensitivity)
	}
	if specificity < 0 || specificity > 1 {
		return ProbativeTest{}, fmt.Errorf("%w: specificity %v out of [0,1]", ErrInvalidTest, specificity)
	}
	return ProbativeTest{Kind: kind, Sensitivity: sensitivity, Specificity: specificity}, nil
}

// CanonicalSmokingGun is the canonical smoking-gun parameterization
// for spec.md §8's end-to-end scenario: a pass from prior 0.1 must
// yield posterior > 0.5. s=0.3, t=0.98 is a low-sensitivity,
// high-specificity smoking-gun pair that satisfies that invariant under
// exact Bayesian updating; see DESIGN.md's Open Question decisions for
// why the literal (s=0.4, t=0.95) spec.md names cannot (that pair
// yields posterior ≈0.4706, not > 0.5, for any exact update).
func CanonicalSmokingGun() ProbativeTest {
	t, _ := NewProbativeTest(KindSmokingGun, 0.3, 0.98)
	return t
}

// Update performs an exact Bayesian update of prior (pi) against test,
// given whether the test was passed. The formula is:
//
//	passed:     P(H|e) = s*pi / (s*pi + (1-t)*(1-pi))
//	not passed: P(H|e) = (1-s)*pi / ((1-s)*pi + t*(1-pi))
//
// Degenerate denominators (both terms zero, which only happens at the
// pi=0/pi=1 boundary with a perfectly discriminating test) resolve to
// the boundary value of pi itself, preserving posterior in [0,1].
func Update(prior float64, test ProbativeTest, passed bool) (float64, error) {
	if prior < 0 || prior > 1 {
		return 0, fmt.Errorf("%w: prior %v out of [0,1]", ErrInvalidInput, prior)
	}

	s, t := test.Sensitivity, test.Specificity

	var num, den float64
	if passed {
		num = s * prior
		den = s*prior + (1-t)*(1-prior)
	} else {
		num = (1 - s) * prior
		den = (1-s)*prior + t*(1-prior)
	}

	if den == 0 {
		// Both terms vanished; only possible at a boundary prior with a
		// perfectly discriminating test. The posterior is undefined by
		// the ratio but must stay within [0,1]; return the prior unchanged
		// rather than dividing by zero.
		return prior, nil
	}

	posterior := num / den
	if posterior < 0 {
		posterior = 0
	}
	if posterior > 1 {
		posterior = 1
	}
	return posterior, nil
}

// LikelihoodRatioPositive returns the likelihood ratio for a pass:
// s / (1-t). A ratio > 1 means a pass can only raise (never lower) the
// posterior relative to the prior.
func LikelihoodRatioPositive(test ProbativeTest) float64 {
	if test.Specificity >= 1 {
		return math.Inf(1)
	}
	return test.Sensitivity / (1 - test.Specificity)
}

// UpdateSequence applies a sequence of (test, passed) observations to
// prior, in the caller-specified order, returning the final posterior
// and the intermediate trace for evidence metadata (spec.md §4.6
// "Determinism": order is recorded, not inferred).
func UpdateSequence(prior float64, steps []Observation) (float64, []Step, error) {
	trace := make([]Step, 0, len(steps))
	cur := prior
	for i, obs := range steps {
		next, err := Update(cur, obs.Test, obs.Passed)
		if err != nil {
			return 0, nil, fmt.Errorf("step %d: %w", i, err)
		}
		trace = append(trace, Step{Index: i, Prior: cur, Test: obs.Test, Passed: obs.Passed, Posterior: next})
		cur = next
	}
	return cur, trace, nil
}

// Observation is one (test, outcome) pair fed to UpdateSequence.
type Observation struct {
	Test   ProbativeTest
	Passed bool
}

// Step records one update in a sequence, for evidence-metadata audit.
type Step struct {
	Index     int
	Prior     float64
	Test      ProbativeTest
	Passed    bool
	Posterior float64
}

// DispersionThresholds parameterizes dispersion_penalty. All three
// fields are required (loaded from config, §4.6) — the zero value is
// not a usable default, it would make every nonzero dispersion
// maximally penalizing.
type DispersionThresholds struct {
	CV      float64 // coefficient-of-variation threshold, e.g. 0.3
	Gap     float64 // max-gap threshold, e.g. 1.0
	Gini    float64 // Gini threshold, e.g. 0.3
}

// DefaultDispersionThresholds returns the canonical thresholds named in
// spec.md §4.6 (cv=0.3, gap=1.0, gini=0.3). Callers needing a
// configured value should load it from ExecutionConfig instead of
// calling this for anything but tests/defaults documentation.
func DefaultDispersionThresholds() DispersionThresholds {
	return DispersionThresholds{CV: 0.3, Gap: 1.0, Gini: 0.3}
}

// DispersionPenalty combines coefficient-of-variation, max-gap, and
// Gini index over scores into a single penalty in [0,1]. The penalty
// is 0 for a constant sequence, non-negative always, and monotone
// non-decreasing as the score range widens with a fixed mean.
func DispersionPenalty(scores []float64, th DispersionThresholds) (float64, Dispersion) {
	if len(scores) == 0 {
		return 0, Dispersion{}
	}

	mean := Mean(scores)
	cv := CoefficientOfVariation(scores, mean)
	gap := MaxGap(scores)
	gini := Gini(scores)

	d := Dispersion{Mean: mean, CV: cv, MaxGap: gap, Gini: gini}

	// Each component contributes its value divided by its threshold
	// (so a value below its threshold still contributes a fraction);
	// the three ratios are averaged, then capped to [0,1].
	contribution := func(value, threshold float64) float64 {
		if threshold <= 0 {
			if value > 0 {
				return 1
			}
			return 0
		}
		ratio := value / threshold
		if ratio < 0 {
			ratio = 0
		}
		return ratio
	}

	cvC := contribution(cv, th.CV)
	gapC := contribution(gap, th.Gap)
	giniC := contribution(gini, th.Gini)

	penalty := (cvC + gapC + giniC) / 3
	if penalty > 1 {
		penalty = 1
	}
	if penalty < 0 {
		penalty = 0
	}
	d.Penalty = penalty
	return penalty, d
}

// Dispersion holds the individual statistics behind a dispersion
// penalty, preserved for coherence diagnostics on aggregate tiers.
type Dispersion struct {
	Mean    float64
	CV      float64
	MaxGap  float64
	Gini    float64
	Penalty float64
}

// Mean returns the arithmetic mean of scores. Callers must pass a
// non-empty slice.
func Mean(scores []float64) float64 {
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// CoefficientOfVariation returns stddev/mean, or 0 when mean is 0
// (a constant-zero sequence has no dispersion to report).
func CoefficientOfVariation(scores []float64, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, s := range scores {
		d := s - mean
		sq += d * d
	}
	variance := sq / float64(len(scores))
	stddev := math.Sqrt(variance)
	return stddev / math.Abs(mean)
}

// MaxGap returns the largest gap between adjacent values in the sorted
// sequence of scores.
func MaxGap(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	maxGap := 0.0
	for i := 1; i < len(sorted); i++ {
		if g := sorted[i] - sorted[i-1]; g > maxGap {
			maxGap = g
		}
	}
	return maxGap
}

// Gini returns the Gini coefficient of scores, defined over the
// non-negative-shifted values (Gini is only meaningful for
// non-negative data; scores are shifted by their minimum so that
// negative-scale inputs, e.g. [-1,3], still produce a value in [0,1]).
func Gini(scores []float64) float64 {
	n := len(scores)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	minV := sorted[0]
	shifted := make([]float64, n)
	sum := 0.0
	for i, v := range sorted {
		shifted[i] = v - minV
		sum += shifted[i]
	}
	if sum == 0 {
		return 0
	}

	var weightedSum float64
	for i, v := range shifted {
		weightedSum += float64(i+1) * v
	}
	gini := (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
	if gini < 0 {
		gini = 0
	}
	if gini > 1 {
		gini = 1
	}
	return gini
}

// Rollup computes a weighted mean of child scores and multiplicatively
// discounts it by the dispersion penalty over those same scores:
//
//	parent = weighted_mean(child_scores, weights) * (1 - penalty)
//
// weights of length 0 means uniform weighting. len(scores) must equal
// len(weights) when weights is non-empty.
func Rollup(scores []float64, weights []float64, th DispersionThresholds) (RollupResult, error) {
	if len(scores) == 0 {
		return RollupResult{}, fmt.Errorf("%w: rollup over zero scores", ErrInvalidInput)
	}
	if len(weights) != 0 && len(weights) != len(scores) {
		return RollupResult{}, fmt.Errorf("%w: %d weights for %d scores", ErrInvalidInput, len(weights), len(scores))
	}

	w := weights
	if len(w) == 0 {
		w = make([]float64, len(scores))
		for i := range w {
			w[i] = 1.0 / float64(len(scores))
		}
	} else {
		sum := 0.0
		for _, x := range w {
			sum += x
		}
		if sum <= 0 {
			return RollupResult{}, fmt.Errorf("%w: weights sum to %v", ErrInvalidInput, sum)
		}
		normalized := make([]float64, len(w))
		for i, x := range w {
			normalized[i] = x / sum
		}
		w = normalized
	}

	weightedMean := 0.0
	for i, s := range scores {
		weightedMean += s * w[i]
	}

	penalty, disp := DispersionPenalty(scores, th)
	final := weightedMean * (1 - penalty)

	return RollupResult{
		WeightedMean: weightedMean,
		Dispersion:   disp,
		Score:        final,
	}, nil
}

// RollupResult is the output of Rollup: the raw weighted mean, the
// dispersion diagnostics that discounted it, and the final score.
type RollupResult struct {
	WeightedMean float64
	Dispersion   Dispersion
	Score        float64
}
