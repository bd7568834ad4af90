package chunk

import (
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// Offset is a half-open character range [Start, End) into the
// normalized source text.
type Offset struct {
	Start int
	End   int
}

// Len returns the number of characters the offset spans.
func (o Offset) Len() int { return o.End - o.Start }

// Valid reports whether the offset is well-formed: non-negative,
// non-inverted.
func (o Offset) Valid() bool { return o.Start >= 0 && o.End >= o.Start }

// Provenance anchors a Chunk to its source: the page range and the
// character offsets it was built from. Required, never nil — a chunk
// without provenance cannot exist.
type Provenance struct {
	PageStart int
	PageEnd   int
	Offsets   []Offset // one per constituent sentence, in document order
}

// Completeness returns 1.0 when every offset is valid and the page
// range is well-formed, 0.0 otherwise. Per the Open Question decision
// in DESIGN.md, only 1.0 is ever an acceptable gate value — any other
// value is surfaced as ErrProvenanceGap by Validate.
func (p Provenance) Completeness() float64 {
	if p.PageStart < 0 || p.PageEnd < p.PageStart || len(p.Offsets) == 0 {
		return 0
	}
	for _, o := range p.Offsets {
		if !o.Valid() {
			return 0
		}
	}
	return 1.0
}

// Validate returns ErrProvenanceGap unless Completeness is exactly 1.0.
func (p Provenance) Validate() error {
	if p.Completeness() != 1.0 {
		return fmt.Errorf("%w: completeness=%v", ErrProvenanceGap, p.Completeness())
	}
	return nil
}

// Sentence is one unit of normalized input text with its character
// offset and (optionally, when an embedding provider ran) a fixed-dim
// semantic embedding.
type Sentence struct {
	Text      string
	Offset    Offset
	PageNum   int
	Embedding []float64
}

// CausalEdge is one typed edge in a chunk's causal DAG, always
// pointing from a lower-rank eslabón to a strictly higher one.
type CausalEdge struct {
	From pdm.Eslabon
	To   pdm.Eslabon
}

// Valid reports whether the edge respects the fixed eslabón order
// (From must rank strictly below To).
func (e CausalEdge) Valid() bool {
	fr, to := e.From.Rank(), e.To.Rank()
	return fr >= 0 && to >= 0 && fr < to
}

// ArgumentativeRole is a Toulmin-like classification of a chunk's
// dominant rhetorical function.
type ArgumentativeRole string

const (
	RoleClaim      ArgumentativeRole = "claim"
	RoleData       ArgumentativeRole = "data"
	RoleWarrant    ArgumentativeRole = "warrant"
	RoleBacking    ArgumentativeRole = "backing"
	RoleRebuttal   ArgumentativeRole = "rebuttal"
	RoleQualifier  ArgumentativeRole = "qualifier"
	RoleUnassigned ArgumentativeRole = "unassigned"
)

// Chunk is a contiguous, semantically coherent span tagged to one
// (PolicyArea, Dimension) cell. Immutable once constructed by Build.
type Chunk struct {
	ID         string
	Text       string
	PolicyArea pdm.PolicyArea
	Dimension  pdm.Dimension
	Embedding  []float64
	Provenance Provenance

	CausalEdges       []CausalEdge
	TemporalMarkers   []string
	ArgumentativeRole ArgumentativeRole

	Coherence float64

	// BoundsViolation and LowCoherence are soft diagnostics: the 50-5000
	// char window and the coherence threshold are targets the
	// segmentation algorithm tries to hit, but only StructuralIncompleteness
	// and provenance gaps are fatal per spec.md §4.1's Failure section.
	BoundsViolation bool
	LowCoherence    bool
}

// CharCount returns len(Text) in runes' byte length — the plain byte
// length is what the 50-5000 window is measured against, matching how
// provenance offsets are computed.
func (c Chunk) CharCount() int { return len(c.Text) }

// ChunkGraph is the complete, deterministically ordered set of exactly
// 60 chunks produced for one document.
type ChunkGraph struct {
	Chunks []Chunk
}

// CellKey uniquely identifies a (PolicyArea, Dimension) cell.
type CellKey struct {
	PolicyArea pdm.PolicyArea
	Dimension  pdm.Dimension
}

// AllCellKeys returns the 60 fixed cell keys in canonical order: outer
// loop over policy areas, inner loop over dimensions.
func AllCellKeys() []CellKey {
	keys := make([]CellKey, 0, len(pdm.PolicyAreas)*len(pdm.Dimensions))
	for _, pa := range pdm.PolicyAreas {
		for _, d := range pdm.Dimensions {
			keys = append(keys, CellKey{PolicyArea: pa, Dimension: d})
		}
	}
	return keys
}

func (k CellKey) String() string { return fmt.Sprintf("%s/%s", k.PolicyArea, k.Dimension) }
