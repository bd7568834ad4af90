package chunk

import (
	"strings"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// detectEslabonMentions scans text for the eslabón-name keywords and
// returns the distinct eslabones mentioned, in EslabonOrder order
// (not mention order) so downstream edge construction is
// deterministic regardless of surface word order.
func detectEslabonMentions(text string) []pdm.Eslabon {
	keywords := map[pdm.Eslabon][]string{
		pdm.EslabonInsumos:     {"insumo", "insumos"},
		pdm.EslabonActividades: {"actividad", "actividades"},
		pdm.EslabonProductos:   {"producto", "productos"},
		pdm.EslabonResultados:  {"resultado", "resultados"},
		pdm.EslabonImpactos:    {"impacto", "impactos"},
	}

	lower := strings.ToLower(text)
	var found []pdm.Eslabon
	for _, e := range pdm.EslabonOrder {
		for _, kw := range keywords[e] {
			if strings.Contains(lower, kw) {
				found = append(found, e)
				break
			}
		}
	}
	return found
}

// BuildCausalDAG constructs the chunk's causal edges from its distinct
// eslabón mentions: each consecutive pair in eslabón order contributes
// one edge. The first edge that would violate the fixed order (From
// rank >= To rank) makes BuildCausalDAG return ErrCyclicCausalEdge and
// no edges at all; since
// mentions are already produced in EslabonOrder by
// detectEslabonMentions, BuildCausalDAG itself can only ever construct
// valid forward edges — the validation exists to guard any edge set
// supplied directly by a caller outside that path (e.g. tests).
func BuildCausalDAG(mentions []pdm.Eslabon) ([]CausalEdge, error) {
	edges := make([]CausalEdge, 0, len(mentions))
	for i := 0; i+1 < len(mentions); i++ {
		edge := CausalEdge{From: mentions[i], To: mentions[i+1]}
		if !edge.Valid() {
			return nil, ErrCyclicCausalEdge
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
