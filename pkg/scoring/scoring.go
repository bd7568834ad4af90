// Package scoring turns per-question Evidence into an immutable
// ScoredResult, under one of two modalities: TYPE_A (discrete,
// rule-based) or TYPE_B (continuous, bounded).
//
// Grounded on other_examples/21096eac_ingo-eichhorst-agent-readyness__internal-scoring-scorer.go.go's
// threshold-bucketed grading and tarsy's controller-level scoring
// glue, generalized to the two fixed modalities spec.md §4.7 names.
package scoring

import (
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// Modality names which scoring algorithm produced a ScoredResult.
type Modality string

const (
	TypeA Modality = "TYPE_A" // confirmatory / rule-based, discrete quality level
	TypeB Modality = "TYPE_B" // continuous, bounded
)

// Thresholds is a set of quality-level cutoffs. DefaultThresholds
// holds the canonical values; a question may carry its own override
// (questionnaire.Question.Thresholds), and the scoring functions take
// whichever applies as their th argument.
type Thresholds struct {
	Excelente     float64
	Satisfactorio float64
	Basico        float64
}

// DefaultThresholds returns the canonical TYPE_A cutoffs: EXCELENTE
// >= 0.85, SATISFACTORIO >= 0.65, BASICO >= 0.40.
func DefaultThresholds() Thresholds {
	return Thresholds{Excelente: 0.85, Satisfactorio: 0.65, Basico: 0.40}
}

// QualityLevelFor maps an elements-present ratio in [0,1] to a
// discrete QualityLevel under th. The mapping is monotone
// non-decreasing in ratio by construction (each branch's threshold is
// strictly lower than the one above it).
func QualityLevelFor(ratio float64, th Thresholds) (pdm.QualityLevel, error) {
	if ratio < 0 || ratio > 1 {
		return "", fmt.Errorf("%w: elements-present ratio %v out of [0,1]", ErrContractViolation, ratio)
	}
	switch {
	case ratio >= th.Excelente:
		return pdm.QualityExcelente, nil
	case ratio >= th.Satisfactorio:
		return pdm.QualitySatisfactorio, nil
	case ratio >= th.Basico:
		return pdm.QualityBasico, nil
	default:
		return pdm.QualityInsuficiente, nil
	}
}

// Evidence is the per-question input to scoring: the set of matched
// element keys (deduplicated, canonical-key form) against the
// question's required elements, plus raw method outputs for audit.
type Evidence struct {
	MatchedElements  []string
	RequiredElements []string
	RawResults       map[string]any
	MethodConfidence map[string]float64
}

// ElementsPresentRatio returns |matched ∩ required| / |required|. A
// question with zero required elements has a ratio of 0 — it cannot
// be vacuously EXCELENTE.
func (e Evidence) ElementsPresentRatio() float64 {
	if len(e.RequiredElements) == 0 {
		return 0
	}
	matched := make(map[string]bool, len(e.MatchedElements))
	for _, m := range e.MatchedElements {
		matched[m] = true
	}
	present := 0
	for _, req := range e.RequiredElements {
		if matched[req] {
			present++
		}
	}
	return float64(present) / float64(len(e.RequiredElements))
}

// ScoredResult is the immutable output of scoring one question.
type ScoredResult struct {
	QuestionGlobalID string
	BaseSlot         pdm.BaseSlot
	PolicyArea       pdm.PolicyArea
	Dimension        pdm.Dimension
	Modality         Modality
	Score            float64 // TYPE_A: {0,1,2,3}; TYPE_B: continuous in [0, scale]
	QualityLevel     pdm.QualityLevel
	Evidence         Evidence
}

// ScoreTypeA computes a discrete ScoredResult from Evidence using the
// fixed TYPE_A thresholds. Score is the quality level's rank (0..3),
// matching the [0,3] scale named in §3's ScoredResult attribute.
func ScoreTypeA(questionGlobalID string, slot pdm.BaseSlot, pa pdm.PolicyArea, dim pdm.Dimension, ev Evidence, th Thresholds) (ScoredResult, error) {
	ratio := ev.ElementsPresentRatio()
	level, err := QualityLevelFor(ratio, th)
	if err != nil {
		return ScoredResult{}, err
	}
	return ScoredResult{
		QuestionGlobalID: questionGlobalID,
		BaseSlot:         slot,
		PolicyArea:       pa,
		Dimension:        dim,
		Modality:         TypeA,
		Score:            float64(level.Rank()),
		QualityLevel:     level,
		Evidence:         ev,
	}, nil
}

// TypeBScale is the output range for TYPE_B continuous scoring: the
// spec names both a [0,3] and a [0,1] convention (§3); which one
// applies is a property of the question, carried explicitly here
// rather than inferred.
type TypeBScale float64

const (
	ScaleZeroToThree TypeBScale = 3
	ScaleZeroToOne   TypeBScale = 1
)

// ScoreTypeB computes a continuous ScoredResult as
// scale * matched_ratio, where matched_ratio is
// len(matched ∩ required) / len(required) — an explicit, unclamped
// formula: the result cannot exceed scale because matched_ratio is
// bounded to [0,1] by construction (matched elements not in required
// do not inflate the numerator), so no post-hoc clamp is needed.
func ScoreTypeB(questionGlobalID string, slot pdm.BaseSlot, pa pdm.PolicyArea, dim pdm.Dimension, ev Evidence, scale TypeBScale, th Thresholds) (ScoredResult, error) {
	ratio := ev.ElementsPresentRatio()
	score := float64(scale) * ratio

	level, err := QualityLevelFor(ratio, th)
	if err != nil {
		return ScoredResult{}, err
	}

	return ScoredResult{
		QuestionGlobalID: questionGlobalID,
		BaseSlot:         slot,
		PolicyArea:       pa,
		Dimension:        dim,
		Modality:         TypeB,
		Score:            score,
		QualityLevel:     level,
		Evidence:         ev,
	}, nil
}
