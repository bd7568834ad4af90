package orchestrator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/calibration"
	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/config"
	"github.com/pdmcolombia/pdmaudit/pkg/executor"
	"github.com/pdmcolombia/pdmaudit/pkg/ingest"
	"github.com/pdmcolombia/pdmaudit/pkg/manifest"
	"github.com/pdmcolombia/pdmaudit/pkg/methodexec"
	"github.com/pdmcolombia/pdmaudit/pkg/orchestrator"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/questionnaire"
	"github.com/pdmcolombia/pdmaudit/pkg/scheduler"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
	"github.com/pdmcolombia/pdmaudit/pkg/seed"
	"github.com/pdmcolombia/pdmaudit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hmacKey = []byte("orchestrator-test-key")

// paKeyword/dimKeyword pair every policy area and dimension with a
// single ontology cue that matches no other area's or dimension's
// pattern, and carries no temporal marker of its own, so a sentence
// built from exactly one of each classifies deterministically into its
// intended (policy area, dimension) cell under pkg/chunk's ontology
// scoring with no embeddings involved.
var paKeyword = map[pdm.PolicyArea]string{
	pdm.PA01: "educación",
	pdm.PA02: "salud",
	pdm.PA03: "agua potable",
	pdm.PA04: "vivienda",
	pdm.PA05: "vías",
	pdm.PA06: "medio ambiente",
	pdm.PA07: "desarrollo económico",
	pdm.PA08: "seguridad ciudadana",
	pdm.PA09: "cultura",
	pdm.PA10: "gobierno",
}

var dimKeyword = map[pdm.Dimension]string{
	pdm.D1Insumos:     "insumos",
	pdm.D2Actividades: "actividades",
	pdm.D3Productos:   "productos",
	pdm.D4Resultados:  "resultados",
	pdm.D5Impactos:    "impactos",
	pdm.D6Causalidad:  "teoría de cambio",
}

// fixedExtractor is a hand-authored ingest.TextExtractor returning one
// precisely classifiable sentence per (policy area, dimension) cell,
// satisfying the chunker's all-60-cells-populated invariant without
// depending on any real document-parsing logic.
type fixedExtractor struct {
	sentences []ingest.Sentence
}

func (f fixedExtractor) Extract(_ context.Context, _ []byte) ([]ingest.Sentence, error) {
	return f.sentences, nil
}

func buildAllCellSentences() []ingest.Sentence {
	var out []ingest.Sentence
	offset := 0
	page := 1
	for _, pa := range pdm.PolicyAreas {
		for _, dim := range pdm.Dimensions {
			text := fmt.Sprintf(
				"El municipio consolida los %s relacionados con %s dentro del plan territorial vigente.",
				dimKeyword[dim], paKeyword[pa],
			)
			out = append(out, ingest.Sentence{
				Text:        text,
				PageStart:   page,
				PageEnd:     page,
				OffsetStart: offset,
				OffsetEnd:   offset + len(text),
			})
			offset += len(text) + 1
			page++
		}
	}
	return out
}

// fixtureQuestion is one test question's coordinates, kept alongside
// the built Bundle so assertions can reason about which (PA, dimension)
// cells a test run actually exercises.
type fixtureQuestion struct {
	globalID string
	pa       pdm.PolicyArea
	dim      pdm.Dimension
	modality scoring.Modality
}

var fixtureQuestions = []fixtureQuestion{
	{globalID: "G-PA01-D1Q1", pa: pdm.PA01, dim: pdm.D1Insumos, modality: scoring.TypeA},
	{globalID: "G-PA01-D2Q1", pa: pdm.PA01, dim: pdm.D2Actividades, modality: scoring.TypeB},
	{globalID: "G-PA02-D1Q1", pa: pdm.PA02, dim: pdm.D1Insumos, modality: scoring.TypeA},
	{globalID: "G-PA03-D3Q1", pa: pdm.PA03, dim: pdm.D3Productos, modality: scoring.TypeB},
	{globalID: "G-PA05-D4Q1", pa: pdm.PA05, dim: pdm.D4Resultados, modality: scoring.TypeA},
	{globalID: "G-PA06-D5Q1", pa: pdm.PA06, dim: pdm.D5Impactos, modality: scoring.TypeB},
	{globalID: "G-PA08-D6Q1", pa: pdm.PA08, dim: pdm.D6Causalidad, modality: scoring.TypeA},
	{globalID: "G-PA10-D2Q1", pa: pdm.PA10, dim: pdm.D2Actividades, modality: scoring.TypeB},
}

func buildQuestionnaireBundle(t *testing.T) *questionnaire.Bundle {
	t.Helper()

	clusters := map[pdm.PolicyArea]pdm.Cluster{
		pdm.PA01: pdm.ClusterSocial,
		pdm.PA02: pdm.ClusterSocial,
		pdm.PA03: pdm.ClusterEnvironment,
		pdm.PA04: pdm.ClusterGovernance,
		pdm.PA05: pdm.ClusterGovernance,
		pdm.PA06: pdm.ClusterEnvironment,
		pdm.PA07: pdm.ClusterEconomic,
		pdm.PA08: pdm.ClusterGovernance,
		pdm.PA09: pdm.ClusterSocial,
		pdm.PA10: pdm.ClusterGovernance,
	}

	questions := make([]questionnaire.Question, len(fixtureQuestions))
	for i, fq := range fixtureQuestions {
		questions[i] = questionnaire.Question{
			GlobalID:         fq.globalID,
			BaseSlot:         pdm.BaseSlot{Dimension: fq.dim, Question: 1},
			PolicyArea:       fq.pa,
			Dimension:        fq.dim,
			Modality:         fq.modality,
			RequiredElements: []string{"full_match"},
		}
	}

	doc := struct {
		PolicyAreaClusters map[pdm.PolicyArea]pdm.Cluster `json:"policy_area_clusters"`
		Questions          []questionnaire.Question        `json:"questions"`
	}{
		PolicyAreaClusters: clusters,
		Questions:          questions,
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	bundle, err := questionnaire.LoadFromJSON(raw)
	require.NoError(t, err)
	return bundle
}

func buildCatalog(t *testing.T, requireCalibrationFor string) *catalog.Catalog {
	t.Helper()

	methods := []catalog.CanonicalMethod{
		{
			MethodID:           "orchestrator.prepare_context",
			FullyQualifiedName: "orchestrator.prepare_context",
			Positionality:      catalog.LayerOrchestrator,
			Priority:           1,
		},
		{
			MethodID:           "analyzer.match_elements",
			FullyQualifiedName: "analyzer.match_elements",
			Positionality:      catalog.LayerAnalyzer,
			Priority:           1,
		},
		{
			MethodID:           "executor.score_evidence",
			FullyQualifiedName: "executor.score_evidence",
			Positionality:      catalog.LayerExecutor,
			Priority:           1,
			RequiresCalibration: requireCalibrationFor == "executor.score_evidence",
		},
	}

	raw, err := json.Marshal(methods)
	require.NoError(t, err)

	cat, err := catalog.LoadFromJSON(raw)
	require.NoError(t, err)
	return cat
}

func buildMethodRegistry(scoreEvidenceFails bool) *methodexec.Registry {
	reg := methodexec.NewRegistry(nil)
	reg.RegisterClass("orchestrator", func() (any, error) { return struct{}{}, nil })
	reg.RegisterClass("analyzer", func() (any, error) { return struct{}{}, nil })
	reg.RegisterClass("executor", func() (any, error) { return struct{}{}, nil })

	reg.InjectMethod("orchestrator", "prepare_context", func(_ any, _ methodexec.Args) (any, error) {
		return "full_match", nil
	})
	reg.InjectMethod("analyzer", "match_elements", func(_ any, _ methodexec.Args) (any, error) {
		return nil, nil
	})
	reg.InjectMethod("executor", "score_evidence", func(_ any, _ methodexec.Args) (any, error) {
		if scoreEvidenceFails {
			return nil, fmt.Errorf("synthetic scoring failure")
		}
		return map[string]any{"elements": []string{"full_match"}, "confidence": 0.95}, nil
	})
	return reg
}

type depsOptions struct {
	artifactsDir          string
	requireCalibrationFor string
	scoreEvidenceFails    bool
	scheduler             *scheduler.Scheduler
}

func buildDependencies(t *testing.T, opts depsOptions) orchestrator.Dependencies {
	t.Helper()

	framework, err := executor.BuildCanonicalFramework()
	require.NoError(t, err)

	calReg := calibration.NewRegistry()
	calReg.Freeze()

	cfg := &config.Config{
		Execution: config.ExecutionConfig{
			MethodTimeout:  time.Second,
			PhaseTimeout:   10 * time.Second,
			Retry:          0,
			Seed:           42,
			ConcurrencyCap: 4,
		},
		CircuitBreaker: config.DefaultCircuitBreakerConfig(),
		ArtifactsDir:   opts.artifactsDir,
		RetentionDays:  config.DefaultRetentionDays,
	}

	return orchestrator.Dependencies{
		Config:        cfg,
		Catalog:       buildCatalog(t, opts.requireCalibrationFor),
		Calibration:   calReg,
		Questionnaire: buildQuestionnaireBundle(t),
		Framework:     framework,
		Router:        executor.DefaultChunkRouter(),
		Ontology:      chunk.NewOntology(),
		Labels:        chunk.LabelEmbeddings{},
		Methods:       buildMethodRegistry(opts.scoreEvidenceFails),
		Extractor:     fixedExtractor{sentences: buildAllCellSentences()},
		Embedder:      nil,
		Seeds:         seed.New(42),
		Scheduler:     opts.scheduler,
		Sessions:      session.NewManager(),
		Runs:          nil,
		HMACKey:       hmacKey,
		Version:       "test",
	}
}

func TestRun_EndToEndSucceedsWithSealedManifestAndCascade(t *testing.T) {
	artifactsDir := t.TempDir()
	deps := buildDependencies(t, depsOptions{
		artifactsDir: artifactsDir,
		scheduler:    scheduler.New(4),
	})

	o := orchestrator.New(deps)
	result, err := o.Run(context.Background(), orchestrator.RunInput{
		RunID:          "run-success",
		Document:       []byte("documento de prueba"),
		UnitOfAnalysis: "municipality",
	})
	require.NoError(t, err)

	assert.True(t, result.Manifest.Success)
	assert.NotEmpty(t, result.Manifest.RunID)
	assert.NoError(t, manifest.Verify(result.Manifest, hmacKey))

	require.Len(t, result.Scored, len(fixtureQuestions))
	for i := 1; i < len(result.Scored); i++ {
		assert.Less(t, result.Scored[i-1].QuestionGlobalID, result.Scored[i].QuestionGlobalID)
	}
	for _, sr := range result.Scored {
		assert.Equal(t, pdm.QualityExcelente, sr.QualityLevel)
	}

	assert.Len(t, result.Dimensions, len(fixtureQuestions))
	assert.NotEmpty(t, result.Areas)
	assert.NotEmpty(t, result.Clusters)
	assert.InDelta(t, 3.0, result.Macro.Score, 1e-9)

	for _, name := range []string{"proof.json", "proof.hash", "results.json", "timeline.json"} {
		_, statErr := os.Stat(filepath.Join(artifactsDir, name))
		assert.NoError(t, statErr, "expected artifact %s to exist", name)
	}
}

func TestRun_SequentialSchedulerAlsoSucceeds(t *testing.T) {
	artifactsDir := t.TempDir()
	deps := buildDependencies(t, depsOptions{
		artifactsDir: artifactsDir,
		scheduler:    nil,
	})

	o := orchestrator.New(deps)
	result, err := o.Run(context.Background(), orchestrator.RunInput{
		RunID:          "run-sequential",
		Document:       []byte("documento de prueba"),
		UnitOfAnalysis: "municipality",
	})
	require.NoError(t, err)
	assert.True(t, result.Manifest.Success)
}

func TestRun_EmptyDocumentReturnsError(t *testing.T) {
	o := orchestrator.New(orchestrator.Dependencies{})
	_, err := o.Run(context.Background(), orchestrator.RunInput{RunID: "run-empty"})
	assert.ErrorIs(t, err, orchestrator.ErrEmptyDocument)
}

func TestRun_AbortsWhenBootstrapFindsUncoveredRequiredCalibration(t *testing.T) {
	artifactsDir := t.TempDir()
	deps := buildDependencies(t, depsOptions{
		artifactsDir:          artifactsDir,
		requireCalibrationFor: "executor.score_evidence",
		scheduler:             scheduler.New(4),
	})

	o := orchestrator.New(deps)
	_, err := o.Run(context.Background(), orchestrator.RunInput{
		RunID:          "run-bootstrap-fails",
		Document:       []byte("documento de prueba"),
		UnitOfAnalysis: "municipality",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrPhaseFailed)
	assert.Contains(t, err.Error(), orchestrator.PhaseBootstrap)

	_, statErr := os.Stat(filepath.Join(artifactsDir, "proof.json"))
	assert.Error(t, statErr, "a bootstrap failure must never produce a sealed proof")

	raw, readErr := os.ReadFile(filepath.Join(artifactsDir, "failure.json"))
	require.NoError(t, readErr, "a phase failure must still write a structured failure record")
	assert.Contains(t, string(raw), orchestrator.PhaseBootstrap)
}

func TestRun_AbortsWhenExecutionMethodFails(t *testing.T) {
	artifactsDir := t.TempDir()
	deps := buildDependencies(t, depsOptions{
		artifactsDir:       artifactsDir,
		scoreEvidenceFails: true,
		scheduler:          scheduler.New(4),
	})

	o := orchestrator.New(deps)
	_, err := o.Run(context.Background(), orchestrator.RunInput{
		RunID:          "run-execution-fails",
		Document:       []byte("documento de prueba"),
		UnitOfAnalysis: "municipality",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrPhaseFailed)
	assert.Contains(t, err.Error(), orchestrator.PhaseExecution)

	_, statErr := os.Stat(filepath.Join(artifactsDir, "proof.json"))
	assert.Error(t, statErr, "an execution failure must never produce a sealed proof")

	raw, readErr := os.ReadFile(filepath.Join(artifactsDir, "failure.json"))
	require.NoError(t, readErr, "a phase failure must still write a structured failure record")
	assert.Contains(t, string(raw), orchestrator.PhaseExecution)
}
