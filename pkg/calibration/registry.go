package calibration

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
)

// entry pairs a frozen calibration with the modifiers applicable to
// its method, and the positionality under which it was registered
// (used to re-validate role-specific weight requirements).
type entry struct {
	calibration  MethodCalibration
	modifiers    Modifiers
	positionality catalog.LayerPositionality
}

// Registry is the immutable, load-once-at-bootstrap calibration
// registry: Registry[method_id] -> MethodCalibration, plus the
// modifiers needed for context resolution. Construct with NewRegistry
// and Register each entry before calling Freeze; after Freeze the
// registry never mutates.
type Registry struct {
	entries map[string]entry
	frozen  bool
	hash    string
}

// NewRegistry returns an empty, mutable registry ready for Register
// calls.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds mc's calibration to the registry, validated against
// cm's positionality. Returns ErrConfigError (wrapped) if mc's weights
// are invalid for cm.Positionality, or if the registry is already
// frozen.
func (r *Registry) Register(cm catalog.CanonicalMethod, mc MethodCalibration, mods Modifiers) error {
	if r.frozen {
		return fmt.Errorf("%w: registry is frozen, cannot register %s", ErrConfigError, mc.MethodID)
	}
	if cm.MethodID != mc.MethodID {
		return fmt.Errorf("%w: method_id mismatch %s vs %s", ErrConfigError, cm.MethodID, mc.MethodID)
	}
	if err := mc.ValidateForPositionality(cm.Positionality); err != nil {
		return err
	}
	r.entries[mc.MethodID] = entry{calibration: mc, modifiers: mods, positionality: cm.Positionality}
	return nil
}

// Freeze seals the registry against further Register calls and
// computes its content hash over the deterministic serialization of
// every entry, for the verification manifest's calibration_hash.
func (r *Registry) Freeze() {
	if r.frozen {
		return
	}
	r.frozen = true
	r.hash = computeRegistryHash(r)
}

func computeRegistryHash(r *Registry) string {
	h := sha256.New()
	for _, id := range r.sortedMethodIDs() {
		e := r.entries[id]
		fmt.Fprintf(h, "%s|%s|", e.calibration.MethodID, e.calibration.Version)
		for _, l := range Layers {
			fmt.Fprintf(h, "%s=%v;", l, e.calibration.Linear[l])
		}
		for _, p := range InteractionPairs() {
			fmt.Fprintf(h, "%s,%s=%v;", p.First, p.Second, e.calibration.Interaction[p])
		}
		h.Write([]byte("\n"))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (r *Registry) sortedMethodIDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Hash returns the registry's content hash. Only valid after Freeze.
func (r *Registry) Hash() string { return r.hash }

// Lookup returns the raw, unmodified calibration for methodID.
// ErrMissingCalibration wraps the returned error when methodID has no
// registry entry.
func (r *Registry) Lookup(methodID string) (MethodCalibration, error) {
	e, ok := r.entries[methodID]
	if !ok {
		return MethodCalibration{}, fmt.Errorf("%w: %s", ErrMissingCalibration, methodID)
	}
	return e.calibration, nil
}

// Resolve returns the context-modified calibration for methodID: the
// base linear weights multiplied by the combined dimension/policy-
// area/unit/positional modifier factor, re-validated against the
// non-negativity and boundedness constraints. Interaction weights are
// left unmodified — only linear weights carry contextual modifiers
// per §4.2.
func (r *Registry) Resolve(methodID string, ctx CalibrationContext) (MethodCalibration, error) {
	e, ok := r.entries[methodID]
	if !ok {
		return MethodCalibration{}, fmt.Errorf("%w: %s", ErrMissingCalibration, methodID)
	}

	factor := e.modifiers.Factor(ctx)
	resolvedLinear := make(map[Layer]float64, len(e.calibration.Linear))
	for l, a := range e.calibration.Linear {
		resolvedLinear[l] = a * factor
	}

	resolved := e.calibration
	resolved.Linear = resolvedLinear

	if err := resolved.validateConstraints(); err != nil {
		return MethodCalibration{}, fmt.Errorf("%w: context resolution for %s produced invalid weights: %v", ErrConfigError, methodID, err)
	}
	if err := resolved.ValidateForPositionality(e.positionality); err != nil {
		return MethodCalibration{}, err
	}
	return resolved, nil
}

// Calibrate resolves methodID against ctx and evaluates the Choquet
// fusion over layerInputs in one call, the primary entry point named
// in spec.md §4.3: calibrate(method_id, context, layer_inputs) -> score.
func (r *Registry) Calibrate(methodID string, ctx CalibrationContext, layerInputs LayerInputs) (float64, error) {
	resolved, err := r.Resolve(methodID, ctx)
	if err != nil {
		return 0, err
	}
	return resolved.Choquet(layerInputs)
}

// RequireAll checks that every methodID in required has a registry
// entry, returning a single wrapped ErrMissingCalibration naming the
// first offender. Intended to be run once at bootstrap against
// catalog.RequiredMethodIDs().
func (r *Registry) RequireAll(required []string) error {
	for _, id := range required {
		if _, ok := r.entries[id]; !ok {
			return fmt.Errorf("%w: required method %s has no calibration entry", ErrMissingCalibration, id)
		}
	}
	return nil
}
