package chunk

import (
	"regexp"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
)

// Ontology holds the fixed regex-cue tables used to score a sentence
// against each policy area and dimension, in the same precompiled-
// table-of-patterns shape as the teacher's content classifier.
type Ontology struct {
	policyAreaPatterns map[pdm.PolicyArea][]*regexp.Regexp
	dimensionPatterns  map[pdm.Dimension][]*regexp.Regexp
	temporalPatterns   []*regexp.Regexp
	rolePatterns       map[ArgumentativeRole][]*regexp.Regexp
}

// NewOntology compiles the fixed municipal-PDM ontology patterns.
func NewOntology() *Ontology {
	o := &Ontology{
		policyAreaPatterns: make(map[pdm.PolicyArea][]*regexp.Regexp),
		dimensionPatterns:  make(map[pdm.Dimension][]*regexp.Regexp),
		rolePatterns:       make(map[ArgumentativeRole][]*regexp.Regexp),
	}
	o.initPolicyAreaPatterns()
	o.initDimensionPatterns()
	o.initTemporalPatterns()
	o.initRolePatterns()
	return o
}

func compileAll(exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func (o *Ontology) initPolicyAreaPatterns() {
	o.policyAreaPatterns[pdm.PA01] = compileAll([]string{
		`(?i)(educaci[oó]n|escuela|colegio|matr[ií]cula|docente)`,
		`(?i)(cobertura educativa|desert[a-z]*\s+escolar)`,
	})
	o.policyAreaPatterns[pdm.PA02] = compileAll([]string{
		`(?i)(salud|hospital|e\.?s\.?e\.?|atenci[oó]n m[eé]dica|r[eé]gimen subsidiado)`,
	})
	o.policyAreaPatterns[pdm.PA03] = compileAll([]string{
		`(?i)(agua potable|alcantarillado|saneamiento b[aá]sico|acueducto)`,
	})
	o.policyAreaPatterns[pdm.PA04] = compileAll([]string{
		`(?i)(vivienda|d[eé]ficit habitacional|mejoramiento de vivienda)`,
	})
	o.policyAreaPatterns[pdm.PA05] = compileAll([]string{
		`(?i)(v[ií]as|infraestructura vial|movilidad|transporte)`,
	})
	o.policyAreaPatterns[pdm.PA06] = compileAll([]string{
		`(?i)(medio ambiente|ambiental|cambio clim[aá]tico|[aá]rea protegida)`,
	})
	o.policyAreaPatterns[pdm.PA07] = compileAll([]string{
		`(?i)(desarrollo econ[oó]mico|empleo|emprendimiento|competitividad)`,
	})
	o.policyAreaPatterns[pdm.PA08] = compileAll([]string{
		`(?i)(seguridad ciudadana|convivencia|orden p[uú]blico|violencia)`,
	})
	o.policyAreaPatterns[pdm.PA09] = compileAll([]string{
		`(?i)(cultura|deporte|recreaci[oó]n|patrimonio)`,
	})
	o.policyAreaPatterns[pdm.PA10] = compileAll([]string{
		`(?i)(gobierno|institucional|participaci[oó]n ciudadana|transparencia)`,
	})
}

func (o *Ontology) initDimensionPatterns() {
	o.dimensionPatterns[pdm.D1Insumos] = compileAll([]string{
		`(?i)(insumos?|recursos? (disponibles|asignados)|presupuesto (destinado|asignado))`,
	})
	o.dimensionPatterns[pdm.D2Actividades] = compileAll([]string{
		`(?i)(actividad(es)?|acci[oó]n(es)? (a )?(realizar|ejecutar)|proceso(s)? de ejecuci[oó]n)`,
	})
	o.dimensionPatterns[pdm.D3Productos] = compileAll([]string{
		`(?i)(producto(s)?|entregable(s)?|bien(es)? (y|o) servicio(s)? generado)`,
	})
	o.dimensionPatterns[pdm.D4Resultados] = compileAll([]string{
		`(?i)(resultado(s)?|efecto(s)? (directo|inmediato)|cambio(s)? observado)`,
	})
	o.dimensionPatterns[pdm.D5Impactos] = compileAll([]string{
		`(?i)(impacto(s)?|efecto(s)? de largo plazo|transformaci[oó]n estructural)`,
	})
	o.dimensionPatterns[pdm.D6Causalidad] = compileAll([]string{
		`(?i)(teor[ií]a de cambio|cadena causal|relaci[oó]n causa.efecto|l[oó]gica de intervenci[oó]n)`,
	})
}

func (o *Ontology) initTemporalPatterns() {
	o.temporalPatterns = compileAll([]string{
		`\b(19|20)\d{2}\b`,
		`(?i)(corto plazo|mediano plazo|largo plazo)`,
		`(?i)(trimestral|semestral|anual|cuatrienio)`,
		`(?i)(a partir de|desde el a[ñn]o|hasta el a[ñn]o)`,
	})
}

func (o *Ontology) initRolePatterns() {
	o.rolePatterns[RoleClaim] = compileAll([]string{
		`(?i)(se (espera|proyecta|propone)|el municipio (busca|pretende))`,
	})
	o.rolePatterns[RoleData] = compileAll([]string{
		`(?i)(seg[uú]n (datos|cifras|el diagn[oó]stico)|de acuerdo (con|a) (el|la) (dane|encuesta|censo))`,
	})
	o.rolePatterns[RoleWarrant] = compileAll([]string{
		`(?i)(debido a|dado que|puesto que|en raz[oó]n de)`,
	})
	o.rolePatterns[RoleBacking] = compileAll([]string{
		`(?i)(de acuerdo con (la normatividad|el marco legal|la ley)|conforme a lo establecido)`,
	})
	o.rolePatterns[RoleRebuttal] = compileAll([]string{
		`(?i)(sin embargo|no obstante|a pesar de|aunque)`,
	})
	o.rolePatterns[RoleQualifier] = compileAll([]string{
		`(?i)(siempre (y cuando|que)|salvo que|en la medida en que)`,
	})
}

// scoreMatches returns the fraction of patterns in exprs that match
// text at least once: a simple, deterministic match-density score in
// [0,1].
func scoreMatches(patterns []*regexp.Regexp, text string) float64 {
	if len(patterns) == 0 {
		return 0
	}
	hits := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			hits++
		}
	}
	return float64(hits) / float64(len(patterns))
}

// PolicyAreaScore returns the ontology match score of text against pa.
func (o *Ontology) PolicyAreaScore(pa pdm.PolicyArea, text string) float64 {
	return scoreMatches(o.policyAreaPatterns[pa], text)
}

// DimensionScore returns the ontology match score of text against dim.
func (o *Ontology) DimensionScore(dim pdm.Dimension, text string) float64 {
	return scoreMatches(o.dimensionPatterns[dim], text)
}

// ExtractTemporalMarkers returns every distinct temporal-marker
// substring matched in text, in first-occurrence order.
func (o *Ontology) ExtractTemporalMarkers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range o.temporalPatterns {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// ClassifyArgumentativeRole scores text against every role's pattern
// table and returns the highest-scoring role. Ties are broken
// lexicographically by role name; an all-zero score yields
// RoleUnassigned.
func (o *Ontology) ClassifyArgumentativeRole(text string) ArgumentativeRole {
	best := RoleUnassigned
	bestScore := 0.0
	for _, role := range []ArgumentativeRole{RoleBacking, RoleClaim, RoleData, RoleQualifier, RoleRebuttal, RoleWarrant} {
		score := scoreMatches(o.rolePatterns[role], text)
		if score > bestScore || (score == bestScore && score > 0 && role < best) {
			bestScore = score
			best = role
		}
	}
	return best
}
