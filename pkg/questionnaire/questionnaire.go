// Package questionnaire holds the canonical micro-question ontology:
// 10 policy areas, 6 dimensions, 4 clusters, and the ~305 questions
// that key scoring and aggregation. Loaded once at bootstrap into an
// immutable Bundle, the same way pkg/catalog freezes the method
// catalog — content-addressed by a SHA-256 hash over the raw payload,
// verified at startup and stamped into the verification manifest as
// the monolith hash.
//
// Grounded on pkg/catalog's Load/Lookup/Hash shape (itself grounded on
// tarsy's pkg/mcp registry), generalized from methods to questions.
package questionnaire

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
)

// Question is one canonical micro-question: its global id, its
// (dimension, question-number) base slot, the policy area and
// dimension it belongs to, its scoring modality, the elements a
// document must exhibit to satisfy it, and the TYPE_A/TYPE_B
// thresholds that apply (zero value means "use scoring.DefaultThresholds").
type Question struct {
	GlobalID         string            `json:"global_id"`
	BaseSlot         pdm.BaseSlot      `json:"base_slot"`
	PolicyArea       pdm.PolicyArea    `json:"policy_area"`
	Dimension        pdm.Dimension     `json:"dimension"`
	Modality         scoring.Modality  `json:"modality"`
	RequiredElements []string          `json:"required_elements"`
	Thresholds       *scoring.Thresholds `json:"thresholds,omitempty"`
}

// EffectiveThresholds returns q.Thresholds if set, otherwise the
// canonical TYPE_A/TYPE_B default cutoffs.
func (q Question) EffectiveThresholds() scoring.Thresholds {
	if q.Thresholds != nil {
		return *q.Thresholds
	}
	return scoring.DefaultThresholds()
}

// Validate checks q's own well-formedness, independent of its
// relationship to any bundle.
func (q Question) Validate() error {
	if q.GlobalID == "" {
		return fmt.Errorf("%w: empty global_id", ErrMalformedEntry)
	}
	if !q.BaseSlot.Valid() {
		return fmt.Errorf("%w: question %s has invalid base_slot %s", ErrMalformedEntry, q.GlobalID, q.BaseSlot)
	}
	if !q.PolicyArea.Valid() {
		return fmt.Errorf("%w: question %s has unknown policy_area %q", ErrMalformedEntry, q.GlobalID, q.PolicyArea)
	}
	if q.Dimension != q.BaseSlot.Dimension {
		return fmt.Errorf("%w: question %s dimension %q does not match base_slot dimension %q", ErrMalformedEntry, q.GlobalID, q.Dimension, q.BaseSlot.Dimension)
	}
	if q.Modality != scoring.TypeA && q.Modality != scoring.TypeB {
		return fmt.Errorf("%w: question %s has unknown modality %q", ErrMalformedEntry, q.GlobalID, q.Modality)
	}
	if len(q.RequiredElements) == 0 {
		return fmt.Errorf("%w: question %s has no required_elements", ErrMalformedEntry, q.GlobalID)
	}
	return nil
}

// bundleDocument is the on-disk JSON shape of the questionnaire
// payload: the fixed policy-area-to-cluster assignment plus the full
// question list. Both travel together so a single SHA-256 hash covers
// the entire canonical ontology, not just the questions.
type bundleDocument struct {
	PolicyAreaClusters map[pdm.PolicyArea]pdm.Cluster `json:"policy_area_clusters"`
	Questions          []Question                     `json:"questions"`
}

// Bundle is the frozen, load-once-at-bootstrap canonical questionnaire.
// The zero value is not usable; construct with LoadFromJSON.
type Bundle struct {
	questions map[string]Question
	order     []string // insertion order, for deterministic iteration
	clusters  map[pdm.PolicyArea]pdm.Cluster
	hash      string
}

// LoadFromJSON parses a questionnaire bundle payload and returns a
// frozen Bundle. Entries with duplicate global_id, that fail
// Validate, or whose policy area lacks a cluster assignment are
// rejected — the whole load fails rather than silently dropping an
// entry.
func LoadFromJSON(raw []byte) (*Bundle, error) {
	var doc bundleDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return build(doc, raw)
}

func build(doc bundleDocument, raw []byte) (*Bundle, error) {
	for _, pa := range pdm.PolicyAreas {
		if _, ok := doc.PolicyAreaClusters[pa]; !ok {
			return nil, fmt.Errorf("%w: policy area %s has no cluster assignment", ErrMalformedEntry, pa)
		}
	}
	for pa, cluster := range doc.PolicyAreaClusters {
		if !pa.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPolicyArea, pa)
		}
		valid := false
		for _, c := range pdm.Clusters {
			if c == cluster {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("%w: policy area %s assigned to unknown cluster %q", ErrMalformedEntry, pa, cluster)
		}
	}

	questions := make(map[string]Question, len(doc.Questions))
	order := make([]string, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := questions[q.GlobalID]; dup {
			return nil, fmt.Errorf("%w: duplicate global_id %s", ErrMalformedEntry, q.GlobalID)
		}
		questions[q.GlobalID] = q
		order = append(order, q.GlobalID)
	}

	sum := sha256.Sum256(raw)
	return &Bundle{
		questions: questions,
		order:     order,
		clusters:  doc.PolicyAreaClusters,
		hash:      fmt.Sprintf("%x", sum),
	}, nil
}

// Lookup resolves global_id to its Question. Absence is always an
// error — there is no zero-value fallback.
func (b *Bundle) Lookup(globalID string) (Question, error) {
	q, ok := b.questions[globalID]
	if !ok {
		return Question{}, fmt.Errorf("%w: %s", ErrMissingQuestion, globalID)
	}
	return q, nil
}

// ClusterOf resolves a policy area to its fixed cluster assignment.
func (b *Bundle) ClusterOf(pa pdm.PolicyArea) (pdm.Cluster, error) {
	c, ok := b.clusters[pa]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPolicyArea, pa)
	}
	return c, nil
}

// Hash returns the SHA-256 content hash of the raw payload this
// Bundle was loaded from — the monolith_hash stamped into the
// verification manifest.
func (b *Bundle) Hash() string { return b.hash }

// Len returns the number of questions in the bundle.
func (b *Bundle) Len() int { return len(b.questions) }

// GlobalIDs returns all question global ids in stable load order.
func (b *Bundle) GlobalIDs() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// QuestionsForPolicyArea returns every question assigned to pa, sorted
// by global id for deterministic iteration.
func (b *Bundle) QuestionsForPolicyArea(pa pdm.PolicyArea) []Question {
	return b.filterSorted(func(q Question) bool { return q.PolicyArea == pa })
}

// QuestionsForDimension returns every question in dimension dim,
// sorted by global id.
func (b *Bundle) QuestionsForDimension(dim pdm.Dimension) []Question {
	return b.filterSorted(func(q Question) bool { return q.Dimension == dim })
}

// QuestionsForBaseSlot returns every question sharing base slot slot
// across policy areas, sorted by global id. A document's chunk router
// uses this to fan a single D{d}Q{q} executor out across all policy
// areas that instantiate it.
func (b *Bundle) QuestionsForBaseSlot(slot pdm.BaseSlot) []Question {
	return b.filterSorted(func(q Question) bool { return q.BaseSlot == slot })
}

func (b *Bundle) filterSorted(keep func(Question) bool) []Question {
	out := make([]Question, 0, len(b.questions))
	for _, id := range b.order {
		q := b.questions[id]
		if keep(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GlobalID < out[j].GlobalID })
	return out
}
