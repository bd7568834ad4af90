// Package ingest defines the external collaborators the pipeline
// depends on but does not implement: PDF text extraction and sentence
// embeddings (spec §1, explicitly out of core scope, "specified at
// interface only"). Phase 1 (document ingestion) is driven entirely
// through these two interfaces; pkg/chunk and every downstream package
// consume their output without knowing which concrete model or parser
// produced it.
//
// Grounded on tarsy's pkg/llm/client.go: a thin wrapper around an
// external network call, gated by an environment variable before any
// network access is attempted. This package keeps that gating shape
// (OFFLINE_MODE/HF_ONLINE, spec §6) but drops the gRPC transport
// itself, since no concrete model backend is part of this module's
// scope.
package ingest

import (
	"context"
	"fmt"
	"os"
)

// Sentence is one extracted, offset-tagged unit of source text, ready
// for pkg/chunk's ontology classification.
type Sentence struct {
	Text      string
	PageStart int
	PageEnd   int
	OffsetStart int
	OffsetEnd   int
}

// TextExtractor turns a source document's raw bytes into an ordered
// list of sentences with page and character-offset provenance.
type TextExtractor interface {
	Extract(ctx context.Context, document []byte) ([]Sentence, error)
}

// EmbeddingProvider embeds a batch of sentences into fixed-dimension
// vectors, in input order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// ErrOffline is returned by any EmbeddingProvider/TextExtractor
// implementation that would need network access while OFFLINE_MODE is
// in effect and HF_ONLINE is not set to allow it.
var ErrOffline = fmt.Errorf("ingest: network model access forbidden (OFFLINE_MODE=1, HF_ONLINE unset)")

// NetworkAccessAllowed reports whether a component may reach the
// network for a model download or inference call, per spec §6's
// OFFLINE_MODE/HF_ONLINE environment variables. OFFLINE_MODE defaults
// to enabled (forbidding network access) even when unset.
func NetworkAccessAllowed() bool {
	offline := os.Getenv("OFFLINE_MODE")
	online := os.Getenv("HF_ONLINE")
	if online == "1" {
		return true
	}
	return offline == "0"
}

// RequireNetworkAccess returns ErrOffline unless NetworkAccessAllowed
// reports true. Any implementation that must reach the network calls
// this before doing so.
func RequireNetworkAccess() error {
	if !NetworkAccessAllowed() {
		return ErrOffline
	}
	return nil
}
