// Package chunk implements the Strategic Chunker: it segments a
// normalized document into exactly 60 policy-area x dimension chunks,
// annotates them with causal DAGs, temporal markers, and an
// argumentative role, and stamps required provenance onto each.
//
// Grounded on other_examples/0b211919_fredcamaral-mcp-alfarrabio__internal-chunking-chunker.go.go's
// precompiled-regexp-table content classifier (problemPatterns,
// solutionPatterns, ... each a []*regexp.Regexp scored by match count)
// generalized from conversation-chunk significance scoring to
// PA/dimension/eslabón/role classification over PDM plan text.
package chunk

import "errors"

var (
	// ErrStructuralIncompleteness is fatal: a PA or dimension cell had
	// no sentence assigned to it anywhere in the document.
	ErrStructuralIncompleteness = errors.New("chunk: structural incompleteness")

	// ErrProvenanceGap is fatal: a chunk's provenance could not be
	// computed (a sentence offset missing or inverted).
	ErrProvenanceGap = errors.New("chunk: provenance gap")

	// ErrCyclicCausalEdge is returned when a causal annotation would
	// introduce a cycle against the fixed eslabón order. No edges are
	// returned with it; the chunker keeps the chunk, without causal edges.
	ErrCyclicCausalEdge = errors.New("chunk: cyclic causal edge")
)
