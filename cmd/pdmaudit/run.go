package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pdmcolombia/pdmaudit/pkg/calibration"
	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/cleanup"
	"github.com/pdmcolombia/pdmaudit/pkg/config"
	"github.com/pdmcolombia/pdmaudit/pkg/database"
	"github.com/pdmcolombia/pdmaudit/pkg/executor"
	"github.com/pdmcolombia/pdmaudit/pkg/ingest"
	"github.com/pdmcolombia/pdmaudit/pkg/methodexec"
	"github.com/pdmcolombia/pdmaudit/pkg/orchestrator"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/questionnaire"
	"github.com/pdmcolombia/pdmaudit/pkg/scheduler"
	"github.com/pdmcolombia/pdmaudit/pkg/seed"
	"github.com/pdmcolombia/pdmaudit/pkg/session"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		configDir    string
		planPath     string
		artifactsDir string
		unit         string
		runID        string
		embedDim     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline against one development-plan document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if planPath == "" {
				return fmt.Errorf("--plan is required")
			}
			return runPipeline(context.Background(), runOptions{
				configDir:    configDir,
				planPath:     planPath,
				artifactsDir: artifactsDir,
				unit:         unit,
				runID:        runID,
				embedDim:     embedDim,
			})
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to pipeline.yaml/catalog.json/registry.json")
	cmd.Flags().StringVar(&planPath, "plan", "", "path to the development-plan PDF to assess (required)")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "override the artifacts directory from pipeline.yaml")
	cmd.Flags().StringVar(&unit, "unit-of-analysis", "municipio", "unit-of-analysis label threaded into calibration context")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (default: a fresh UUID)")
	cmd.Flags().IntVar(&embedDim, "embed-dim", 32, "dimensionality of the default offline sentence embedder")
	return cmd
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type runOptions struct {
	configDir    string
	planPath     string
	artifactsDir string
	unit         string
	runID        string
	embedDim     int
}

// runPipeline wires every collaborator Dependencies needs and drives
// one orchestrator.Run. This is the only place in the binary that
// loads the catalog, calibration registry, and questionnaire bundle;
// phaseBootstrap only checks their internal consistency, per
// pkg/orchestrator/phases.go's comment on that split.
func runPipeline(ctx context.Context, opts runOptions) error {
	log := slog.Default()

	cfg, err := config.Initialize(ctx, opts.configDir)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if opts.artifactsDir != "" {
		cfg.ArtifactsDir = opts.artifactsDir
	}
	if override := os.Getenv("SEED"); override != "" {
		var s uint64
		if _, err := fmt.Sscanf(override, "%d", &s); err != nil {
			return fmt.Errorf("invalid SEED override %q: %w", override, err)
		}
		cfg.Execution.Seed = s
	}

	cat, err := catalog.LoadFromJSON(cfg.CatalogRaw)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	calibrationRegistry, err := calibration.LoadFromJSON(cat, cfg.RegistryRaw)
	if err != nil {
		return fmt.Errorf("loading calibration registry: %w", err)
	}
	bundle, _, err := questionnaire.BuildCanonical()
	if err != nil {
		return fmt.Errorf("building questionnaire bundle: %w", err)
	}

	framework, err := executor.BuildCanonicalFramework()
	if err != nil {
		return fmt.Errorf("building executor framework: %w", err)
	}
	router := executor.DefaultChunkRouter()
	ontology := chunk.NewOntology()

	seeds := seed.New(cfg.Execution.Seed)

	embedder := ingest.NewDeterministicEmbedder(opts.embedDim)
	labels, err := buildLabelEmbeddings(ctx, embedder)
	if err != nil {
		return fmt.Errorf("building label embeddings: %w", err)
	}

	methodRouter := methodexec.BuildBaselineRouter()
	methods := methodexec.BuildBaselineRegistry(methodRouter)

	var runs *database.RunRepository
	if dbCfg, err := database.LoadConfigFromEnv(); err == nil {
		client, err := database.NewClient(ctx, dbCfg)
		if err != nil {
			log.Warn("database unavailable, proceeding without run-ledger persistence", "error", err)
		} else {
			defer func() {
				if err := client.Close(); err != nil {
					log.Warn("error closing database client", "error", err)
				}
			}()
			runs = database.NewRunRepository(client)
		}
	}

	sweeper := cleanup.NewService(cleanup.Config{
		ArtifactsDir:    cfg.ArtifactsDir,
		RetentionWindow: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		SweepInterval:   time.Hour,
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	deps := orchestrator.Dependencies{
		Config:        cfg,
		Catalog:       cat,
		Calibration:   calibrationRegistry,
		Questionnaire: bundle,
		Framework:     framework,
		Router:        router,
		Ontology:      ontology,
		Labels:        labels,
		Methods:       methods,
		Extractor:     ingest.DeterministicExtractor{},
		Embedder:      embedder,
		Seeds:         seeds,
		Scheduler:     scheduler.New(cfg.Execution.ConcurrencyCap),
		Sessions:      session.NewManager(),
		Runs:          runs,
		HMACKey:       hmacKey(),
		Version:       version,
	}

	document, err := os.ReadFile(opts.planPath)
	if err != nil {
		return fmt.Errorf("reading plan document: %w", err)
	}

	runID := opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	log.Info("starting run", "run_id", runID, "plan", opts.planPath, "artifacts_dir", cfg.ArtifactsDir)

	result, err := orchestrator.New(deps).Run(ctx, orchestrator.RunInput{
		RunID:          runID,
		Document:       document,
		UnitOfAnalysis: opts.unit,
	})
	if err != nil {
		return fmt.Errorf("run %s failed: %w", runID, err)
	}

	log.Info("run complete", "run_id", runID, "success", result.Manifest.Success, "macro_score", result.Macro.Score)
	if !result.Manifest.Success {
		return fmt.Errorf("run %s did not seal: manifest reports success=false", runID)
	}
	return nil
}

// buildLabelEmbeddings derives one reference vector per policy area
// and per dimension by embedding each enum value's own canonical
// string (e.g. "PA01", "D1") through embedder, giving the chunker's
// semantic-similarity term (pkg/chunk's cellScore) something
// deterministic to compare sentence embeddings against without
// requiring network access or a trained label set.
func buildLabelEmbeddings(ctx context.Context, embedder ingest.EmbeddingProvider) (chunk.LabelEmbeddings, error) {
	texts := make([]string, 0, len(pdm.PolicyAreas)+len(pdm.Dimensions))
	for _, pa := range pdm.PolicyAreas {
		texts = append(texts, string(pa))
	}
	for _, dim := range pdm.Dimensions {
		texts = append(texts, string(dim))
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return chunk.LabelEmbeddings{}, err
	}

	labels := chunk.LabelEmbeddings{
		PolicyArea: make(map[pdm.PolicyArea][]float64, len(pdm.PolicyAreas)),
		Dimension:  make(map[pdm.Dimension][]float64, len(pdm.Dimensions)),
	}
	i := 0
	for _, pa := range pdm.PolicyAreas {
		labels.PolicyArea[pa] = vectors[i]
		i++
	}
	for _, dim := range pdm.Dimensions {
		labels.Dimension[dim] = vectors[i]
		i++
	}
	return labels, nil
}

// hmacKey returns the manifest-signing key from PDMAUDIT_HMAC_KEY, or
// a fixed development fallback if unset.
func hmacKey() []byte {
	if k := os.Getenv("PDMAUDIT_HMAC_KEY"); k != "" {
		return []byte(k)
	}
	return []byte("pdmaudit-development-hmac-key")
}
