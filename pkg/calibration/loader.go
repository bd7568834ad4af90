package calibration

import (
	"encoding/json"
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// interactionWeightDocument is one pairwise interaction weight in
// registry.json's wire format. Interaction weights can't key a JSON
// object by a struct pair, so the registry file carries them as an
// explicit (first, second, weight) list instead of a map.
type interactionWeightDocument struct {
	First  Layer   `json:"first"`
	Second Layer   `json:"second"`
	Weight float64 `json:"weight"`
}

type modifiersDocument struct {
	ByDimension  map[pdm.Dimension]float64  `json:"by_dimension,omitempty"`
	ByPolicyArea map[pdm.PolicyArea]float64 `json:"by_policy_area,omitempty"`
	ByUnit       map[string]float64         `json:"by_unit,omitempty"`
	ByPosition   map[Positional]float64     `json:"by_position,omitempty"`
}

type registryEntryDocument struct {
	MethodID       string                      `json:"method_id"`
	Version        string                      `json:"version"`
	Linear         map[Layer]float64           `json:"linear"`
	Interaction    []interactionWeightDocument `json:"interaction,omitempty"`
	MinEvidence    float64                     `json:"min_evidence"`
	ConfidenceMin  float64                     `json:"confidence_min"`
	ConfidenceMax  float64                     `json:"confidence_max"`
	ProvenanceHash string                      `json:"provenance_hash"`
	Modifiers      modifiersDocument           `json:"modifiers"`
}

// LoadFromJSON parses a registry.json payload (a JSON array of
// calibration entries) against cat. Every entry's method_id must
// already be a cataloged method, looked up to recover its
// positionality for the role-specific weight check; LoadFromJSON
// validates each entry's weights, registers it, and returns a frozen
// Registry.
//
// The whole load fails on the first invalid or unknown-method entry,
// matching catalog.LoadFromJSON's load-fails-rather-than-drops
// contract.
func LoadFromJSON(cat *catalog.Catalog, raw []byte) (*Registry, error) {
	var docs []registryEntryDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigError, err)
	}

	reg := NewRegistry()
	for _, d := range docs {
		cm, err := cat.Lookup(d.MethodID)
		if err != nil {
			return nil, err
		}

		interaction := make(map[InteractionPair]float64, len(d.Interaction))
		for _, iw := range d.Interaction {
			interaction[InteractionPair{First: iw.First, Second: iw.Second}] = iw.Weight
		}

		mc, err := NewMethodCalibration(d.MethodID, d.Version, d.Linear, interaction,
			d.MinEvidence, d.ConfidenceMin, d.ConfidenceMax, d.ProvenanceHash)
		if err != nil {
			return nil, err
		}

		mods := Modifiers{
			ByDimension:  d.Modifiers.ByDimension,
			ByPolicyArea: d.Modifiers.ByPolicyArea,
			ByUnit:       d.Modifiers.ByUnit,
			ByPosition:   d.Modifiers.ByPosition,
		}
		if err := reg.Register(cm, mc, mods); err != nil {
			return nil, err
		}
	}

	reg.Freeze()
	return reg, nil
}
