// Package pdm holds the fixed domain vocabulary shared across the
// pipeline: policy areas, dimensions, clusters, the theory-of-change
// eslabón order, and quality levels. These are closed enumerations —
// the questionnaire, chunker, and aggregation cascade all key off them.
package pdm

import "fmt"

// PolicyArea is one of the ten fixed Colombian municipal policy domains.
type PolicyArea string

// The ten policy areas, PA01 through PA10.
const (
	PA01 PolicyArea = "PA01"
	PA02 PolicyArea = "PA02"
	PA03 PolicyArea = "PA03"
	PA04 PolicyArea = "PA04"
	PA05 PolicyArea = "PA05"
	PA06 PolicyArea = "PA06"
	PA07 PolicyArea = "PA07"
	PA08 PolicyArea = "PA08"
	PA09 PolicyArea = "PA09"
	PA10 PolicyArea = "PA10"
)

// PolicyAreas lists all ten areas in canonical order.
var PolicyAreas = []PolicyArea{PA01, PA02, PA03, PA04, PA05, PA06, PA07, PA08, PA09, PA10}

// Valid reports whether pa is one of the ten fixed policy areas.
func (pa PolicyArea) Valid() bool {
	for _, v := range PolicyAreas {
		if v == pa {
			return true
		}
	}
	return false
}

// Dimension is one of the six theory-of-change dimensions.
type Dimension string

// The six dimensions, in fixed theory-of-change order.
const (
	D1Insumos      Dimension = "D1"
	D2Actividades  Dimension = "D2"
	D3Productos    Dimension = "D3"
	D4Resultados   Dimension = "D4"
	D5Impactos     Dimension = "D5"
	D6Causalidad   Dimension = "D6"
)

// Dimensions lists all six dimensions in canonical order.
var Dimensions = []Dimension{D1Insumos, D2Actividades, D3Productos, D4Resultados, D5Impactos, D6Causalidad}

// Valid reports whether d is one of the six fixed dimensions.
func (d Dimension) Valid() bool {
	for _, v := range Dimensions {
		if v == d {
			return true
		}
	}
	return false
}

// Eslabon is a link in the causal chain. Order is fixed and
// non-cyclic: Insumos -> Actividades -> Productos -> Resultados -> Impactos.
type Eslabon string

const (
	EslabonInsumos     Eslabon = "insumos"
	EslabonActividades Eslabon = "actividades"
	EslabonProductos   Eslabon = "productos"
	EslabonResultados  Eslabon = "resultados"
	EslabonImpactos    Eslabon = "impactos"
)

// EslabonOrder is the fixed causal-chain order; index in this slice is
// the link's rank for cycle detection (an edge is only valid if it
// points from a lower rank to a strictly higher one).
var EslabonOrder = []Eslabon{EslabonInsumos, EslabonActividades, EslabonProductos, EslabonResultados, EslabonImpactos}

// Rank returns e's position in EslabonOrder, or -1 if e is not a
// recognized link.
func (e Eslabon) Rank() int {
	for i, v := range EslabonOrder {
		if v == e {
			return i
		}
	}
	return -1
}

// Cluster groups policy areas into one of four macro clusters.
type Cluster string

const (
	ClusterSocial      Cluster = "social"
	ClusterEconomic    Cluster = "economic"
	ClusterEnvironment Cluster = "environment"
	ClusterGovernance  Cluster = "governance"
)

// Clusters lists the four clusters in canonical order.
var Clusters = []Cluster{ClusterSocial, ClusterEconomic, ClusterEnvironment, ClusterGovernance}

// QualityLevel is the discrete outcome of TYPE_A (rule-based) scoring.
type QualityLevel string

const (
	QualityInsuficiente  QualityLevel = "INSUFICIENTE"
	QualityBasico        QualityLevel = "BASICO"
	QualitySatisfactorio QualityLevel = "SATISFACTORIO"
	QualityExcelente     QualityLevel = "EXCELENTE"
)

// qualityRank gives a total order over quality levels for monotonicity checks.
var qualityRank = map[QualityLevel]int{
	QualityInsuficiente:  0,
	QualityBasico:        1,
	QualitySatisfactorio: 2,
	QualityExcelente:     3,
}

// Rank returns q's position in the monotone quality ordering, lowest first.
func (q QualityLevel) Rank() int { return qualityRank[q] }

// BaseSlot is the (dimension, question) coordinate of a micro-question,
// formatted as "D{d}Q{q}".
type BaseSlot struct {
	Dimension Dimension
	Question  int // 1..5
}

// String renders the slot in its canonical "D{d}Q{q}" form.
func (s BaseSlot) String() string {
	return fmt.Sprintf("%sQ%d", s.Dimension, s.Question)
}

// Valid reports whether the slot names a real dimension and a question
// number in the fixed 1..5 range.
func (s BaseSlot) Valid() bool {
	return s.Dimension.Valid() && s.Question >= 1 && s.Question <= 5
}

// AllBaseSlots returns the 30 fixed D{d}Q{q} slots in canonical order:
// outer loop over dimensions, inner loop over question number.
func AllBaseSlots() []BaseSlot {
	slots := make([]BaseSlot, 0, len(Dimensions)*5)
	for _, d := range Dimensions {
		for q := 1; q <= 5; q++ {
			slots = append(slots, BaseSlot{Dimension: d, Question: q})
		}
	}
	return slots
}
