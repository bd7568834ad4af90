// Package aggregate implements the multi-level rollup cascade —
// Dimension -> Area -> Cluster -> Macro — plus the contradiction
// scanner that flags child/parent narrative disagreement.
//
// Grounded on tarsy's services/timeline_service.go (ordered,
// append-only aggregation over a declared required-field set) and its
// validator-style fail-loudly-on-missing-column pattern.
//
// Per the Open Question decision recorded in DESIGN.md, every tier
// below is a frozen record, never a map[string]any — Fields() is the
// sole, explicit, one-shot dict escape hatch for serialization.
package aggregate

import (
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/bayes"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// Sign is the narrative direction of a score relative to its scale's
// neutral midpoint.
type Sign int

const (
	SignNegative Sign = -1
	SignNeutral  Sign = 0
	SignPositive Sign = 1
)

// SignOf returns the sign of score against a scale whose neutral
// point is scale/2.
func SignOf(score, scale float64) Sign {
	mid := scale / 2
	switch {
	case score > mid:
		return SignPositive
	case score < mid:
		return SignNegative
	default:
		return SignNeutral
	}
}

// Member is one child contribution folded into a tier: its score, the
// weight it carried into the weighted mean, and the sign used for
// contradiction scanning.
type Member struct {
	ID     string
	Score  float64
	Weight float64
	Sign   Sign
}

// Contradiction records one child whose sign disagreed with its
// parent's dominant narrative direction.
type Contradiction struct {
	ParentGroupKey string
	ChildID        string
	ChildSign      Sign
	ParentSign     Sign
}

// scanContradictions computes the weight-dominant sign among members
// (ties broken toward SignNeutral, which never itself triggers a
// contradiction) and flags every member whose sign strictly opposes
// it. Neutral members never contradict and never set the dominant
// sign alone.
func scanContradictions(parentGroupKey string, members []Member) (Sign, []Contradiction) {
	weightBySign := map[Sign]float64{}
	for _, m := range members {
		weightBySign[m.Sign] += m.Weight
	}

	dominant := SignNeutral
	if weightBySign[SignPositive] > weightBySign[SignNegative] {
		dominant = SignPositive
	} else if weightBySign[SignNegative] > weightBySign[SignPositive] {
		dominant = SignNegative
	}

	var contradictions []Contradiction
	if dominant == SignNeutral {
		return dominant, contradictions
	}
	opposite := SignPositive
	if dominant == SignPositive {
		opposite = SignNegative
	}
	for _, m := range members {
		if m.Sign == opposite {
			contradictions = append(contradictions, Contradiction{
				ParentGroupKey: parentGroupKey,
				ChildID:        m.ID,
				ChildSign:      m.Sign,
				ParentSign:     dominant,
			})
		}
	}
	return dominant, contradictions
}

// Aggregate is the common shape shared by every tier: the weighted
// mean before dispersion discount, the dispersion diagnostics, the
// final penalized score, and the contradiction records raised against
// this tier's own direct children.
type Aggregate struct {
	GroupKey       string
	WeightedMean   float64
	Dispersion     bayes.Dispersion
	Score          float64
	DominantSign   Sign
	Members        []Member
	Contradictions []Contradiction
}

// fold runs Rollup + scanContradictions over members and returns the
// shared Aggregate shape. members must be non-empty.
func fold(groupKey string, members []Member, th bayes.DispersionThresholds) (Aggregate, error) {
	if len(members) == 0 {
		return Aggregate{}, fmt.Errorf("%w: %s", ErrEmptyGroup, groupKey)
	}

	scores := make([]float64, len(members))
	weights := make([]float64, len(members))
	for i, m := range members {
		scores[i] = m.Score
		weights[i] = m.Weight
	}

	res, err := bayes.Rollup(scores, weights, th)
	if err != nil {
		return Aggregate{}, fmt.Errorf("%s: %w", groupKey, err)
	}

	dominant, contradictions := scanContradictions(groupKey, members)

	return Aggregate{
		GroupKey:       groupKey,
		WeightedMean:   res.WeightedMean,
		Dispersion:     res.Dispersion,
		Score:          res.Score,
		DominantSign:   dominant,
		Members:        append([]Member(nil), members...),
		Contradictions: contradictions,
	}, nil
}

// Fields renders a into a plain map for serialization at the
// JSON/report boundary. This is the one sanctioned dict view of an
// aggregate record; nothing internal to the pipeline consumes it.
func (a Aggregate) Fields() map[string]any {
	return map[string]any{
		"group_key":     a.GroupKey,
		"weighted_mean": a.WeightedMean,
		"score":         a.Score,
		"cv":            a.Dispersion.CV,
		"max_gap":       a.Dispersion.MaxGap,
		"gini":          a.Dispersion.Gini,
		"penalty":       a.Dispersion.Penalty,
		"dominant_sign": int(a.DominantSign),
		"member_count":  len(a.Members),
		"contradictions": len(a.Contradictions),
	}
}

// DimensionScore is the weighted-mean-with-dispersion rollup of the 5
// micro-scores within a (dimension, policy_area) cell.
type DimensionScore struct {
	Aggregate
	PolicyArea pdm.PolicyArea
	Dimension  pdm.Dimension
}

// AggregateDimension folds micros (exactly 5 expected, but any
// non-empty set is accepted — the structural "exactly 5" invariant is
// enforced by the caller's questionnaire-driven construction, not
// here) into one DimensionScore.
func AggregateDimension(pa pdm.PolicyArea, dim pdm.Dimension, micros []Member, th bayes.DispersionThresholds) (DimensionScore, error) {
	groupKey := fmt.Sprintf("%s/%s", pa, dim)
	agg, err := fold(groupKey, micros, th)
	if err != nil {
		return DimensionScore{}, err
	}
	return DimensionScore{Aggregate: agg, PolicyArea: pa, Dimension: dim}, nil
}

// AreaScore is the penalized mean of a policy area's 6 dimension
// scores.
type AreaScore struct {
	Aggregate
	PolicyArea pdm.PolicyArea
}

// AggregateArea folds dims (the PA's DimensionScores, expressed as
// Members) into one AreaScore. A nil/empty weights set (all Member
// weights equal) is the spec's "weights optional, default uniform".
func AggregateArea(pa pdm.PolicyArea, dims []Member, th bayes.DispersionThresholds) (AreaScore, error) {
	groupKey := string(pa)
	agg, err := fold(groupKey, dims, th)
	if err != nil {
		return AreaScore{}, err
	}
	return AreaScore{Aggregate: agg, PolicyArea: pa}, nil
}

// ClusterScore is the penalized mean of a cluster's member areas.
type ClusterScore struct {
	Aggregate
	Cluster pdm.Cluster
}

// AggregateCluster folds areas into one ClusterScore.
func AggregateCluster(cluster pdm.Cluster, areas []Member, th bayes.DispersionThresholds) (ClusterScore, error) {
	groupKey := string(cluster)
	agg, err := fold(groupKey, areas, th)
	if err != nil {
		return ClusterScore{}, err
	}
	return ClusterScore{Aggregate: agg, Cluster: cluster}, nil
}

// MacroScore is the single penalized mean over all clusters.
type MacroScore struct {
	Aggregate
}

// AggregateMacro folds clusters into the single MacroScore.
func AggregateMacro(clusters []Member, th bayes.DispersionThresholds) (MacroScore, error) {
	agg, err := fold("macro", clusters, th)
	if err != nil {
		return MacroScore{}, err
	}
	return MacroScore{Aggregate: agg}, nil
}
