package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdmcolombia/pdmaudit/pkg/seed"
)

// Config bounds and thresholds the chunker enforces as soft targets
// (§4.1: 50<=chars<=5000, coherence>=threshold).
type Config struct {
	MinChars            int
	MaxChars            int
	CoherenceThreshold  float64
}

// DefaultConfig returns the canonical bounds named in spec.md §4.1.
func DefaultConfig() Config {
	return Config{MinChars: 50, MaxChars: 5000, CoherenceThreshold: 0.3}
}

// Chunker is the Strategic Chunker: deterministic given its ontology,
// label embeddings, and seed registry.
type Chunker struct {
	ontology *Ontology
	labels   LabelEmbeddings
	cfg      Config
	seeds    *seed.Registry
}

// NewChunker constructs a Chunker. seeds may be nil; no stochastic
// operation in this package currently draws from it, but it is
// threaded through so future embedding-sampling extensions route
// through the registry rather than a process-global RNG, per §5.
func NewChunker(ontology *Ontology, labels LabelEmbeddings, cfg Config, seeds *seed.Registry) *Chunker {
	return &Chunker{ontology: ontology, labels: labels, cfg: cfg, seeds: seeds}
}

// Build segments sentences into the 60-chunk ChunkGraph. A cell with
// zero assigned sentences anywhere in the document is fatal
// (ErrStructuralIncompleteness); a chunk whose computed provenance
// does not reach completeness 1.0 is fatal (ErrProvenanceGap, wrapped
// from Provenance.Validate).
func (c *Chunker) Build(sentences []Sentence) (ChunkGraph, error) {
	assignments := classifySentences(c.ontology, c.labels, sentences)

	byCell := make(map[CellKey][]int, 60)
	for _, a := range assignments {
		byCell[a.cell] = append(byCell[a.cell], a.sentenceIndex)
	}

	cells := AllCellKeys()
	chunks := make([]Chunk, 0, len(cells))

	for _, cell := range cells {
		indices, ok := byCell[cell]
		if !ok || len(indices) == 0 {
			return ChunkGraph{}, fmt.Errorf("%w: cell %s has no assigned content", ErrStructuralIncompleteness, cell)
		}

		chunk, err := c.buildChunk(cell, sentences, indices)
		if err != nil {
			return ChunkGraph{}, err
		}
		chunks = append(chunks, chunk)
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].PolicyArea != chunks[j].PolicyArea {
			return chunks[i].PolicyArea < chunks[j].PolicyArea
		}
		return chunks[i].Dimension < chunks[j].Dimension
	})

	return ChunkGraph{Chunks: chunks}, nil
}

// buildChunk merges the sentences at indices (already in document
// order, since classifySentences preserves input order) into one
// Chunk for cell.
func (c *Chunker) buildChunk(cell CellKey, sentences []Sentence, indices []int) (Chunk, error) {
	var textBuilder strings.Builder
	offsets := make([]Offset, 0, len(indices))
	embeddings := make([][]float64, 0, len(indices))

	minPage, maxPage := -1, -1
	for n, idx := range indices {
		s := sentences[idx]
		if n > 0 {
			textBuilder.WriteByte(' ')
		}
		textBuilder.WriteString(s.Text)
		offsets = append(offsets, s.Offset)
		if len(s.Embedding) > 0 {
			embeddings = append(embeddings, s.Embedding)
		}
		if minPage == -1 || s.PageNum < minPage {
			minPage = s.PageNum
		}
		if s.PageNum > maxPage {
			maxPage = s.PageNum
		}
	}

	prov := Provenance{PageStart: minPage, PageEnd: maxPage, Offsets: offsets}
	if err := prov.Validate(); err != nil {
		return Chunk{}, fmt.Errorf("cell %s: %w", cell, err)
	}

	text := textBuilder.String()
	coherence := meanPairwiseCosine(embeddings)
	meanEmbedding := averageVector(embeddings)

	mentions := detectEslabonMentions(text)
	causalEdges, err := BuildCausalDAG(mentions)
	if err != nil {
		// A cyclic mention order is dropped from the chunk's annotation,
		// not fatal to the chunk itself — the chunk still exists with no
		// causal edges recorded.
		causalEdges = nil
	}

	chunk := Chunk{
		ID:                fmt.Sprintf("%s_%s", cell.PolicyArea, cell.Dimension),
		Text:              text,
		PolicyArea:        cell.PolicyArea,
		Dimension:         cell.Dimension,
		Embedding:         meanEmbedding,
		Provenance:        prov,
		CausalEdges:       causalEdges,
		TemporalMarkers:   c.ontology.ExtractTemporalMarkers(text),
		ArgumentativeRole: c.ontology.ClassifyArgumentativeRole(text),
		Coherence:         coherence,
		BoundsViolation:   len(text) < c.cfg.MinChars || len(text) > c.cfg.MaxChars,
		LowCoherence:      len(embeddings) > 1 && coherence < c.cfg.CoherenceThreshold,
	}
	return chunk, nil
}

// meanPairwiseCosine returns the mean cosine similarity across all
// distinct pairs of vecs. A single vector (or none) has no pairwise
// relation, so coherence defaults to 1.0 — a lone sentence is
// trivially self-coherent.
func meanPairwiseCosine(vecs [][]float64) float64 {
	if len(vecs) < 2 {
		return 1.0
	}
	var sum float64
	var n int
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			sum += cosine(vecs[i], vecs[j])
			n++
		}
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

// averageVector returns the element-wise mean of vecs, or nil if vecs
// is empty or vectors differ in dimensionality.
func averageVector(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	out := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float64(len(vecs))
	}
	return out
}
