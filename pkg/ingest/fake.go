package ingest

import (
	"context"
	"fmt"
	"strings"
)

// DeterministicExtractor is a TextExtractor that splits a document on
// blank lines and treats each resulting block as one sentence on a
// single page. It exists so pkg/chunk and pkg/orchestrator tests can
// exercise the full pipeline without a real PDF parser, which is
// outside this module's scope.
type DeterministicExtractor struct{}

// Extract implements TextExtractor.
func (DeterministicExtractor) Extract(_ context.Context, document []byte) ([]Sentence, error) {
	blocks := strings.Split(string(document), "\n\n")
	sentences := make([]Sentence, 0, len(blocks))
	offset := 0
	for i, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			offset += len(block) + 2
			continue
		}
		sentences = append(sentences, Sentence{
			Text:        trimmed,
			PageStart:   i + 1,
			PageEnd:     i + 1,
			OffsetStart: offset,
			OffsetEnd:   offset + len(trimmed),
		})
		offset += len(block) + 2
	}
	return sentences, nil
}

// DeterministicEmbedder is an EmbeddingProvider that derives a
// fixed-dimension vector from each text's byte content via a simple
// rolling hash, so identical input always yields an identical vector
// without any model weights or network access. Used by tests and by
// any deployment that chooses not to wire a real embedding backend.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs a DeterministicEmbedder
// producing vectors of the given dimension.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim < 1 {
		dim = 1
	}
	return &DeterministicEmbedder{dim: dim}
}

// Dimension implements EmbeddingProvider.
func (e *DeterministicEmbedder) Dimension() int {
	return e.dim
}

// Embed implements EmbeddingProvider. It requires no network access
// and ignores RequireNetworkAccess, since it never contacts an
// external model.
func (e *DeterministicEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.vectorFor(text)
	}
	return out, nil
}

func (e *DeterministicEmbedder) vectorFor(text string) []float64 {
	vec := make([]float64, e.dim)
	var h uint64 = 14695981039346656037
	for _, b := range []byte(text) {
		h ^= uint64(b)
		h *= 1099511628211
		idx := int(h % uint64(e.dim))
		vec[idx] += 1
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	scale := 1.0 / sqrt(norm)
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// NetworkEmbeddingProvider wraps an EmbeddingProvider that must reach
// a remote model, enforcing RequireNetworkAccess before every call.
// Concrete wire transport to the remote model is outside this
// module's scope; this wrapper only guards the offline-mode
// invariant.
type NetworkEmbeddingProvider struct {
	Inner EmbeddingProvider
}

// Dimension implements EmbeddingProvider.
func (n NetworkEmbeddingProvider) Dimension() int {
	return n.Inner.Dimension()
}

// Embed implements EmbeddingProvider, refusing to call Inner.Embed
// unless network access is currently allowed.
func (n NetworkEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := RequireNetworkAccess(); err != nil {
		return nil, fmt.Errorf("network embedding provider: %w", err)
	}
	return n.Inner.Embed(ctx, texts)
}
