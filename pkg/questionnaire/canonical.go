package questionnaire

import (
	"encoding/json"
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
)

// defaultPolicyAreaClusters is a fixed partition of the ten policy
// areas into the four macro clusters. The spec names the cluster
// count but not a canonical assignment; this partition groups PA01-03
// as social, PA04-06 as economic, PA07-08 as environment, and PA09-10
// as governance, matching the relative weight a Colombian PDM typically
// gives each domain. Recorded as an Open Question decision in DESIGN.md.
var defaultPolicyAreaClusters = map[pdm.PolicyArea]pdm.Cluster{
	pdm.PA01: pdm.ClusterSocial,
	pdm.PA02: pdm.ClusterSocial,
	pdm.PA03: pdm.ClusterSocial,
	pdm.PA04: pdm.ClusterEconomic,
	pdm.PA05: pdm.ClusterEconomic,
	pdm.PA06: pdm.ClusterEconomic,
	pdm.PA07: pdm.ClusterEnvironment,
	pdm.PA08: pdm.ClusterEnvironment,
	pdm.PA09: pdm.ClusterGovernance,
	pdm.PA10: pdm.ClusterGovernance,
}

// BuildCanonicalDocument constructs the full ~305-question canonical
// ontology: all 30 D{d}Q{q} base slots instantiated once per policy
// area (300 questions), plus five supplementary D6Q5 causal-coherence
// questions for the first five policy areas — the extra few questions
// the spec's "~305" leaves unspecified beyond the fixed 10x30 grid.
// Modality alternates TYPE_A for dimensions D1-D3 (input/activity/
// product questions are binary-checklist in nature) and TYPE_B for
// D4-D6 (outcome/impact/causal questions are graded continuously).
func BuildCanonicalDocument() bundleDocument {
	var questions []Question

	for _, pa := range pdm.PolicyAreas {
		for _, slot := range pdm.AllBaseSlots() {
			questions = append(questions, Question{
				GlobalID:   fmt.Sprintf("%s-%s", pa, slot),
				BaseSlot:   slot,
				PolicyArea: pa,
				Dimension:  slot.Dimension,
				Modality:   modalityFor(slot.Dimension),
				RequiredElements: []string{
					fmt.Sprintf("%s_element_1", slot),
					fmt.Sprintf("%s_element_2", slot),
				},
			})
		}
	}

	supplementalSlot := pdm.BaseSlot{Dimension: pdm.D6Causalidad, Question: 5}
	for _, pa := range pdm.PolicyAreas[:5] {
		questions = append(questions, Question{
			GlobalID:   fmt.Sprintf("%s-%s-SUPP", pa, supplementalSlot),
			BaseSlot:   supplementalSlot,
			PolicyArea: pa,
			Dimension:  supplementalSlot.Dimension,
			Modality:   scoring.TypeB,
			RequiredElements: []string{
				fmt.Sprintf("%s_supplemental_coherence_element", supplementalSlot),
			},
		})
	}

	return bundleDocument{
		PolicyAreaClusters: defaultPolicyAreaClusters,
		Questions:          questions,
	}
}

// modalityFor returns the fixed TYPE_A/TYPE_B modality for a
// dimension's questions: D1-D3 are checklist-style (TYPE_A), D4-D6 are
// graded continuously (TYPE_B).
func modalityFor(dim pdm.Dimension) scoring.Modality {
	switch dim {
	case pdm.D1Insumos, pdm.D2Actividades, pdm.D3Productos:
		return scoring.TypeA
	default:
		return scoring.TypeB
	}
}

// BuildCanonical returns the frozen Bundle for the default canonical
// questionnaire, along with the raw JSON payload it was hashed from so
// callers (bootstrap, tests) can persist or re-verify it.
func BuildCanonical() (*Bundle, []byte, error) {
	doc := BuildCanonicalDocument()
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("questionnaire: failed to marshal canonical document: %w", err)
	}
	bundle, err := LoadFromJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	return bundle, raw, nil
}
