// Package seed derives per-component deterministic seeds from a single
// base seed, so that every stochastic operation in the pipeline (none
// of the core math is stochastic today, but embeddings/sampling
// components routed through here will be) is reproducible given
// (base_seed, component_name) alone — no component may read a
// process-global RNG directly.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// Registry derives and remembers per-component seeds from a fixed base
// seed. It is safe for concurrent use.
type Registry struct {
	base uint64

	mu     sync.Mutex
	issued map[string]uint64
	order  []string // order of first issuance, for audit logging
}

// New creates a registry rooted at baseSeed. baseSeed is typically the
// SEED environment variable (§6) or a fixed value for production runs.
func New(baseSeed uint64) *Registry {
	return &Registry{
		base:   baseSeed,
		issued: make(map[string]uint64),
	}
}

// For returns the deterministic 64-bit seed for component, deriving it
// on first use as the first 8 bytes, read big-endian, of
// SHA256(base_seed || component), with base_seed written as 8
// big-endian bytes.
// Repeated calls for the same component return the same value.
func (r *Registry) For(component string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.issued[component]; ok {
		return s
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], r.base)
	h := sha256.New()
	h.Write(buf[:])
	h.Write([]byte(component))
	sum := h.Sum(nil)

	s := binary.BigEndian.Uint64(sum[:8])
	r.issued[component] = s
	r.order = append(r.order, component)
	return s
}

// AuditLog returns the component->seed mapping in issuance order, for
// embedding into the VerificationManifest's determinism.rng_audit_log.
func (r *Registry) AuditLog() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.order))
	for _, c := range r.order {
		entries = append(entries, Entry{Component: c, Seed: r.issued[c]})
	}
	return entries
}

// BaseSeed returns the base seed this registry was constructed with.
func (r *Registry) BaseSeed() uint64 { return r.base }

// Entry is one (component, derived seed) audit record.
type Entry struct {
	Component string `json:"component"`
	Seed      uint64 `json:"seed"`
}

// String renders the entry for debug logging.
func (e Entry) String() string {
	return fmt.Sprintf("%s=%d", e.Component, e.Seed)
}
