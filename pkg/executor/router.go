package executor

import (
	"sort"

	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// ChunkType names one of the six semantic chunk categories named in
// §4.5: diagnostic, activity, indicator, resource, temporal, entity.
type ChunkType string

const (
	ChunkDiagnostic ChunkType = "diagnostic"
	ChunkActivity   ChunkType = "activity"
	ChunkIndicator  ChunkType = "indicator"
	ChunkResource   ChunkType = "resource"
	ChunkTemporal   ChunkType = "temporal"
	ChunkEntity     ChunkType = "entity"
)

// dimensionChunkType is the fixed default chunk type for a chunk whose
// dominant dimension is the map key. This maps the six theory-of-
// change dimensions onto five of the six semantic chunk types: D1
// (inputs) with resource, D2 (activities) with activity, D3 (products)
// with indicator (products are verified through indicators), D4
// (results) with diagnostic (results sections typically restate
// baseline-vs-target diagnostics), D5 (impacts) with entity (impacts
// are discussed in terms of the population/entities affected), and D6
// (causal chain) with entity as well. Temporal is never a default: a
// chunk is classified temporal only when it carries a temporal marker,
// whatever its dimension (see ClassifyChunkType).
var dimensionChunkType = map[pdm.Dimension]ChunkType{
	pdm.D1Insumos:     ChunkResource,
	pdm.D2Actividades: ChunkActivity,
	pdm.D3Productos:   ChunkIndicator,
	pdm.D4Resultados:  ChunkDiagnostic,
	pdm.D5Impactos:    ChunkEntity,
	pdm.D6Causalidad:  ChunkEntity,
}

// ClassifyChunkType derives c's semantic chunk type. A chunk carrying
// at least one temporal marker is always classified temporal,
// regardless of dimension; otherwise the dimension's fixed default
// type applies.
func ClassifyChunkType(c chunk.Chunk) ChunkType {
	if len(c.TemporalMarkers) > 0 {
		return ChunkTemporal
	}
	if t, ok := dimensionChunkType[c.Dimension]; ok {
		return t
	}
	return ChunkEntity
}

// ChunkRouter maintains the mapping from semantic chunk type to the
// executor base slots it is relevant to (§4.5 "ChunkRouter maintains a
// mapping from semantic chunk type ... to a list of executor base
// slots").
type ChunkRouter struct {
	typeToSlots map[ChunkType][]pdm.BaseSlot
}

// NewChunkRouter builds a router from an explicit type->slots mapping.
func NewChunkRouter(mapping map[ChunkType][]pdm.BaseSlot) *ChunkRouter {
	copied := make(map[ChunkType][]pdm.BaseSlot, len(mapping))
	for t, slots := range mapping {
		copied[t] = append([]pdm.BaseSlot(nil), slots...)
	}
	return &ChunkRouter{typeToSlots: copied}
}

// DefaultChunkRouter builds the router implied by dimensionChunkType:
// every base slot is relevant to the semantic chunk type its
// dimension defaults to.
func DefaultChunkRouter() *ChunkRouter {
	mapping := make(map[ChunkType][]pdm.BaseSlot)
	for _, slot := range pdm.AllBaseSlots() {
		t := dimensionChunkType[slot.Dimension]
		mapping[t] = append(mapping[t], slot)
	}
	return NewChunkRouter(mapping)
}

// SlotsForType returns the base slots registered as relevant to t,
// sorted by (dimension, question).
func (r *ChunkRouter) SlotsForType(t ChunkType) []pdm.BaseSlot {
	out := append([]pdm.BaseSlot(nil), r.typeToSlots[t]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		return out[i].Question < out[j].Question
	})
	return out
}

// IsRelevant reports whether chunk type t is mapped to slot.
func (r *ChunkRouter) IsRelevant(slot pdm.BaseSlot, t ChunkType) bool {
	for _, s := range r.typeToSlots[t] {
		if s == slot {
			return true
		}
	}
	return false
}

// RelevantChunks returns the chunks in graph relevant to slot's
// executor within policy area pa: those whose (PA, DIM) match the
// executor's (PA, DIM) target, further filtered by the semantic chunk
// type map (§4.5).
func (r *ChunkRouter) RelevantChunks(slot pdm.BaseSlot, pa pdm.PolicyArea, graph chunk.ChunkGraph) []chunk.Chunk {
	var out []chunk.Chunk
	for _, c := range graph.Chunks {
		if c.PolicyArea != pa || c.Dimension != slot.Dimension {
			continue
		}
		if r.IsRelevant(slot, ClassifyChunkType(c)) {
			out = append(out, c)
		}
	}
	return out
}
