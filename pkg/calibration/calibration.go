package calibration

import (
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
)

// MethodCalibration is the frozen calibration for one (method_id,
// version): linear layer weights, pairwise interaction weights,
// minimum-evidence thresholds, confidence bounds, and a provenance
// hash. Constructed only via NewMethodCalibration, which enforces the
// registry-load-time constraints.
type MethodCalibration struct {
	MethodID      string
	Version       string
	Linear        map[Layer]float64
	Interaction   map[InteractionPair]float64
	MinEvidence   float64
	ConfidenceMin float64
	ConfidenceMax float64
	ProvenanceHash string
}

// NewMethodCalibration validates linear and interaction against the
// registry constraints (§3):
//
//	a_ℓ ≥ 0
//	a_ℓk ≥ 0
//	Σa_ℓ + Σa_ℓk ≤ 1
//	a_ℓ + Σ_{k≠ℓ} a_ℓk ≥ 0   (monotonicity; trivially true given non-negativity,
//	                          kept as an explicit independent check since weights
//	                          may carry signed adjustments upstream of this call)
//
// and returns an error wrapping ErrConfigError naming the offending
// method_id on any violation.
func NewMethodCalibration(methodID, version string, linear map[Layer]float64, interaction map[InteractionPair]float64, minEvidence, confMin, confMax float64, provenanceHash string) (MethodCalibration, error) {
	mc := MethodCalibration{
		MethodID:       methodID,
		Version:        version,
		Linear:         cloneLinear(linear),
		Interaction:    cloneInteraction(interaction),
		MinEvidence:    minEvidence,
		ConfidenceMin:  confMin,
		ConfidenceMax:  confMax,
		ProvenanceHash: provenanceHash,
	}
	if err := mc.validateConstraints(); err != nil {
		return MethodCalibration{}, err
	}
	return mc, nil
}

func cloneLinear(in map[Layer]float64) map[Layer]float64 {
	out := make(map[Layer]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneInteraction(in map[InteractionPair]float64) map[InteractionPair]float64 {
	out := make(map[InteractionPair]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// validateConstraints enforces the §3 weight constraints against mc's
// current linear/interaction maps.
func (mc MethodCalibration) validateConstraints() error {
	sum := 0.0
	for _, l := range Layers {
		a, ok := mc.Linear[l]
		if !ok {
			continue // zero weight on an unused layer is permitted for non-executor roles
		}
		if a < 0 {
			return fmt.Errorf("%w: method %s layer %s weight %v < 0", ErrConfigError, mc.MethodID, l, a)
		}
		sum += a
	}
	for _, p := range InteractionPairs() {
		a, ok := mc.Interaction[p]
		if !ok {
			continue
		}
		if a < 0 {
			return fmt.Errorf("%w: method %s interaction (%s,%s) weight %v < 0", ErrConfigError, mc.MethodID, p.First, p.Second, a)
		}
		sum += a
	}
	if sum > 1 {
		return fmt.Errorf("%w: method %s weights sum to %v > 1", ErrConfigError, mc.MethodID, sum)
	}

	for _, l := range Layers {
		monotone := mc.Linear[l]
		for _, p := range InteractionPairs() {
			if p.First == l || p.Second == l {
				monotone += mc.Interaction[p]
			}
		}
		if monotone < 0 {
			return fmt.Errorf("%w: method %s layer %s monotonicity violated (%v < 0)", ErrConfigError, mc.MethodID, l, monotone)
		}
	}
	return nil
}

// RequiresAllLayers reports whether positionality mandates all eight
// linear weights be strictly positive (executor role, §4.3).
func RequiresAllLayers(p catalog.LayerPositionality) bool {
	return p == catalog.LayerExecutor
}

// ValidateForPositionality applies the role-specific weight
// requirement: executor methods must have all eight a_ℓ>0; every
// other role must have at least one strictly positive linear weight.
func (mc MethodCalibration) ValidateForPositionality(p catalog.LayerPositionality) error {
	if RequiresAllLayers(p) {
		for _, l := range Layers {
			if mc.Linear[l] <= 0 {
				return fmt.Errorf("%w: executor method %s missing positive weight on layer %s", ErrConfigError, mc.MethodID, l)
			}
		}
		return nil
	}

	for _, l := range Layers {
		if mc.Linear[l] > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: method %s has no positive linear weight on any layer", ErrConfigError, mc.MethodID)
}

// Choquet evaluates the 2-additive fusion:
//
//	Cal = Σ_ℓ a_ℓ·x_ℓ + Σ_{ℓ<k} a_ℓk·min(x_ℓ,x_k)
//
// against the validated inputs, with no clamping and no
// normalization. If the result falls outside [0,1] the weights are
// miswired and ErrOutOfRange is returned — the caller must fix the
// registry, not the result.
func (mc MethodCalibration) Choquet(inputs LayerInputs) (float64, error) {
	if err := inputs.Validate(); err != nil {
		return 0, err
	}

	total := 0.0
	for _, l := range Layers {
		total += mc.Linear[l] * inputs[l]
	}
	for _, p := range InteractionPairs() {
		a, ok := mc.Interaction[p]
		if !ok || a == 0 {
			continue
		}
		x1, x2 := inputs[p.First], inputs[p.Second]
		m := x1
		if x2 < m {
			m = x2
		}
		total += a * m
	}

	if total < 0 || total > 1 {
		return 0, fmt.Errorf("%w: method %s produced %v", ErrOutOfRange, mc.MethodID, total)
	}
	return total, nil
}
