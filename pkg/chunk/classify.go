package chunk

import (
	"math"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// LabelEmbeddings is the frozen label set (§4.1: "semantic-similarity
// binning against a frozen label set") a sentence embedding is
// compared against: one reference vector per policy area and one per
// dimension.
type LabelEmbeddings struct {
	PolicyArea map[pdm.PolicyArea][]float64
	Dimension  map[pdm.Dimension][]float64
}

// cosine returns the cosine similarity of a and b, or 0 if either is
// a zero vector or they differ in dimensionality.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// cellScore combines the ontology match score and the embedding
// cosine similarity for one (PA, dim) candidate against sentence s,
// weighted evenly between the two signals.
func cellScore(o *Ontology, labels LabelEmbeddings, s Sentence, pa pdm.PolicyArea, dim pdm.Dimension) float64 {
	ontologyScore := (o.PolicyAreaScore(pa, s.Text) + o.DimensionScore(dim, s.Text)) / 2

	embeddingScore := 0.0
	if len(s.Embedding) > 0 {
		paSim := cosine(s.Embedding, labels.PolicyArea[pa])
		dimSim := cosine(s.Embedding, labels.Dimension[dim])
		embeddingScore = (paSim + dimSim) / 2
	}

	return 0.5*ontologyScore + 0.5*embeddingScore
}

// assignment is one sentence's resolved (PA, dim) cell with the
// scores that produced it, kept for tie-break bookkeeping.
type assignment struct {
	sentenceIndex int
	cell          CellKey
	score         float64
	ontologyScore float64
}

// classifySentences assigns every sentence in sentences to its
// highest-scoring (PA, dim) cell. Ties are broken, in order: earlier
// source offset (already guaranteed since sentences are processed in
// document order and ties favor the first-seen candidate only within
// a single sentence's own candidate set), then higher ontology-match
// score, then lexicographic cell id.
func classifySentences(o *Ontology, labels LabelEmbeddings, sentences []Sentence) []assignment {
	cells := AllCellKeys()
	out := make([]assignment, len(sentences))

	for i, s := range sentences {
		var best assignment
		best.sentenceIndex = i
		bestSet := false

		for _, cell := range cells {
			score := cellScore(o, labels, s, cell.PolicyArea, cell.Dimension)
			ontologyScore := (o.PolicyAreaScore(cell.PolicyArea, s.Text) + o.DimensionScore(cell.Dimension, s.Text)) / 2

			if !bestSet {
				best = assignment{sentenceIndex: i, cell: cell, score: score, ontologyScore: ontologyScore}
				bestSet = true
				continue
			}

			switch {
			case score > best.score:
				best = assignment{sentenceIndex: i, cell: cell, score: score, ontologyScore: ontologyScore}
			case score == best.score && ontologyScore > best.ontologyScore:
				best = assignment{sentenceIndex: i, cell: cell, score: score, ontologyScore: ontologyScore}
			case score == best.score && ontologyScore == best.ontologyScore && cell.String() < best.cell.String():
				best = assignment{sentenceIndex: i, cell: cell, score: score, ontologyScore: ontologyScore}
			}
		}

		out[i] = best
	}
	return out
}
