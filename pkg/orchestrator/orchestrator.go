// Package orchestrator drives one pipeline run through its eleven
// fixed phases, Phase0 through Phase10, in strict order. It is the
// single place that wires every other package together: configuration,
// the method catalog and calibration registry, the canonical
// questionnaire, the chunker, the executor framework, the Bayesian
// evidence engine, scoring, the aggregation cascade, and the run
// ledger/manifest.
//
// Grounded on tarsy's pkg/agent/orchestrator/runner.go: a single driver
// type holding every collaborator a run needs, dispatching bounded-
// concurrency sub-work through a shared pool, and recording every
// transition into an append-only timeline as it goes. The session-
// registry/cancel-function pairing there becomes pkg/session.Manager
// here; the sub-agent dispatch loop becomes pkg/scheduler.RunPhase.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/calibration"
	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/config"
	"github.com/pdmcolombia/pdmaudit/pkg/database"
	"github.com/pdmcolombia/pdmaudit/pkg/executor"
	"github.com/pdmcolombia/pdmaudit/pkg/ingest"
	"github.com/pdmcolombia/pdmaudit/pkg/manifest"
	"github.com/pdmcolombia/pdmaudit/pkg/methodexec"
	"github.com/pdmcolombia/pdmaudit/pkg/questionnaire"
	"github.com/pdmcolombia/pdmaudit/pkg/scheduler"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
	"github.com/pdmcolombia/pdmaudit/pkg/seed"
	"github.com/pdmcolombia/pdmaudit/pkg/session"
	"github.com/pdmcolombia/pdmaudit/pkg/timeline"
)

// Phase names, in fixed execution order. These are also the required-
// phase names stamped into the VerificationManifest's phase_success
// map, and the manifest will not seal unless every one of them
// reported success.
const (
	PhaseBootstrap    = "phase0_bootstrap"
	PhaseIngestion    = "phase1_ingestion"
	PhaseChunking     = "phase2_chunking"
	PhaseRouting      = "phase3_routing"
	PhaseExecution    = "phase4_execution"
	PhaseBayesUpdate  = "phase5_bayes_update"
	PhaseScoring      = "phase6_scoring"
	PhaseCollection   = "phase7_collection"
	PhaseAggregation  = "phase8_aggregation"
	PhaseSealing      = "phase9_sealing"
	PhaseOutput       = "phase10_output"
)

// orderedPhases is the fixed Phase0 -> ... -> Phase10 sequence, also
// used as manifest.NewBuilder's requiredPhases.
var orderedPhases = []string{
	PhaseBootstrap, PhaseIngestion, PhaseChunking, PhaseRouting, PhaseExecution,
	PhaseBayesUpdate, PhaseScoring, PhaseCollection, PhaseAggregation, PhaseSealing, PhaseOutput,
}

// parallelPhases are the bounded-parallelism phases named in spec.md
// §5 (2, 3, 4, 5, 8, 10); every other phase runs as a single
// sequential step, either because it is inherently one operation
// (ingestion, sealing) or because ordering determinism matters more
// than throughput (scoring, collection).
var parallelPhases = map[string]bool{
	PhaseChunking:    true,
	PhaseRouting:     true,
	PhaseExecution:   true,
	PhaseBayesUpdate: true,
	PhaseAggregation: true,
	PhaseOutput:      true,
}

// Dependencies collects every collaborator a run needs. All fields
// except Runs are required; Runs being nil means the run proceeds
// without ledger persistence (useful for tests and for `verify`-only
// invocations that never open a database connection).
type Dependencies struct {
	Config        *config.Config
	Catalog       *catalog.Catalog
	Calibration   *calibration.Registry
	Questionnaire *questionnaire.Bundle
	Framework     *executor.Framework
	Router        *executor.ChunkRouter
	Ontology      *chunk.Ontology
	Labels        chunk.LabelEmbeddings
	Methods       *methodexec.Registry
	Extractor     ingest.TextExtractor
	Embedder      ingest.EmbeddingProvider
	Seeds         *seed.Registry
	Scheduler     *scheduler.Scheduler
	Sessions      *session.Manager
	Runs          *database.RunRepository
	HMACKey       []byte
	Version       string
}

// RunInput is the per-run, caller-supplied material: the document
// bytes to ingest and the unit-of-analysis label threaded into
// calibration context resolution (§4.2).
type RunInput struct {
	RunID          string
	Document       []byte
	UnitOfAnalysis string
}

// RunResult is everything one run produced: the sealed manifest, the
// question-level scores in their final sorted order, and the
// aggregation cascade's output tiers, kept together for phase10's
// report artifact.
type RunResult struct {
	Manifest   manifest.Manifest
	Scored     []scoring.ScoredResult
	Dimensions []DimensionResult
	Areas      []AreaResult
	Clusters   []ClusterResult
	Macro      MacroResult
}

// Orchestrator drives one run at a time through the fixed phase
// sequence. It is not safe to call Run concurrently on the same
// Orchestrator for two different runs that might share circuit
// breaker state inconsistently; callers needing concurrent runs
// should construct one Orchestrator per run, sharing only the
// immutable Dependencies fields (Catalog, Calibration, Questionnaire,
// Framework are all safe to share read-only).
type Orchestrator struct {
	deps Dependencies

	breakers map[string]*executor.CircuitBreaker
	timeline *timeline.Log
	manifest *manifest.Builder
}

// New constructs an Orchestrator over deps. deps is not copied
// defensively; callers must not mutate it for the lifetime of a run.
func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		breakers: make(map[string]*executor.CircuitBreaker),
	}
}

// breakerFor returns the per-base-slot circuit breaker, creating it on
// first use from the configured threshold/history limit (§4.5,
// "Circuit-breaker state is per-executor").
func (o *Orchestrator) breakerFor(slotID string) *executor.CircuitBreaker {
	if cb, ok := o.breakers[slotID]; ok {
		return cb
	}
	cbCfg := o.deps.Config.CircuitBreaker
	if cbCfg == nil {
		cbCfg = config.DefaultCircuitBreakerConfig()
	}
	cb := executor.NewCircuitBreaker(slotID, cbCfg.ConsecutiveFailureThreshold, cbCfg.HistoryLimit)
	o.breakers[slotID] = cb
	return cb
}

// Run drives in through every phase in order, aborting the sequence at
// the first phase failure. On success it returns the sealed manifest
// and the full run result; on failure the returned error wraps
// ErrPhaseFailed naming the phase that failed and a reproducible
// event_id, a structured FailureRecord is written to the artifacts
// directory, and no manifest is produced.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (RunResult, error) {
	if len(in.Document) == 0 {
		return RunResult{}, ErrEmptyDocument
	}

	log := slog.With("run_id", in.RunID)
	o.timeline = timeline.NewLog(in.RunID)
	o.manifest = manifest.NewBuilder(
		o.deps.Version,
		in.RunID,
		o.deps.Config.Execution.Seed,
		pipelineHash(o.deps.Config),
		o.deps.Calibration.Hash(),
		o.deps.Catalog.Hash(),
		o.deps.Questionnaire.Hash(),
		environmentFingerprint(),
		orderedPhases,
		time.Now(),
	)

	run := &runState{in: in}

	if o.deps.Sessions != nil {
		if _, err := o.deps.Sessions.Register(in.RunID, o.deps.Config.Execution.Seed, func() {}); err != nil {
			return RunResult{}, fmt.Errorf("%w: registering session: %v", ErrPhaseFailed, err)
		}
	}
	if o.deps.Runs != nil {
		if err := o.deps.Runs.CreateRun(ctx, in.RunID, o.deps.Config.Execution.Seed, time.Now().UTC()); err != nil {
			return RunResult{}, fmt.Errorf("%w: creating run row: %v", ErrPhaseFailed, err)
		}
	}

	phaseFuncs := map[string]func(context.Context, *runState) error{
		PhaseBootstrap:   o.phaseBootstrap,
		PhaseIngestion:   o.phaseIngestion,
		PhaseChunking:    o.phaseChunking,
		PhaseRouting:     o.phaseRouting,
		PhaseExecution:   o.phaseExecution,
		PhaseBayesUpdate: o.phaseBayesUpdate,
		PhaseScoring:     o.phaseScoring,
		PhaseCollection:  o.phaseCollection,
		PhaseAggregation: o.phaseAggregation,
		PhaseSealing:     o.phaseSealing,
		PhaseOutput:      o.phaseOutput,
	}

	for i, phase := range orderedPhases {
		o.timeline.Append(timeline.EventPhaseStarted, phase, "", nil)
		log.Info("phase starting", "phase", phase, "index", i)

		if err := phaseFuncs[phase](ctx, run); err != nil {
			o.manifest.RecordPhaseFailure(phase)
			rec := newFailureRecord(in.RunID, phase, err, time.Now())
			o.timeline.Append(timeline.EventPhaseFailed, phase, "", map[string]any{"error": err.Error(), "event_id": rec.EventID})
			if werr := writeFailureRecord(o.deps.Config.ArtifactsDir, rec); werr != nil {
				log.Warn("failed to write failure record", "error", werr)
			}
			if o.deps.Sessions != nil {
				_ = o.deps.Sessions.Fail(in.RunID, err)
			}
			if o.deps.Runs != nil {
				_ = o.deps.Runs.UpdatePhase(ctx, in.RunID, "failed", i)
			}
			return RunResult{}, fmt.Errorf("%w: %s: event_id=%s: %v", ErrPhaseFailed, phase, rec.EventID, err)
		}

		o.manifest.RecordPhaseSuccess(phase)
		o.timeline.Append(timeline.EventPhaseCompleted, phase, "", nil)
		if o.deps.Sessions != nil {
			_ = o.deps.Sessions.Transition(in.RunID, session.StatusRunning, i+1)
		}
		if o.deps.Runs != nil {
			_ = o.deps.Runs.UpdatePhase(ctx, in.RunID, "running", i+1)
		}
	}

	if o.deps.Sessions != nil {
		_ = o.deps.Sessions.Transition(in.RunID, session.StatusSucceeded, len(orderedPhases))
	}

	return run.result, nil
}

// runPhaseTasks is a thin wrapper over scheduler.RunPhase that
// chooses, per phase, between bounded-parallelism fan-out and a single
// sequential call — the latter for phases the spec does not name in
// its parallel list, the former otherwise.
func (o *Orchestrator) runPhaseTasks(ctx context.Context, phase string, tasks []scheduler.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	budget := o.deps.Config.Execution.PhaseTimeout
	if !parallelPhases[phase] || o.deps.Scheduler == nil {
		for _, t := range tasks {
			taskCtx := ctx
			var cancel context.CancelFunc
			if budget > 0 {
				taskCtx, cancel = context.WithTimeout(ctx, budget)
			}
			err := t.Run(taskCtx)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return o.deps.Scheduler.RunPhase(ctx, phase, budget, tasks)
}

// runState carries the accumulating, phase-to-phase working data for
// one run. Fields are filled in by the phase they're named after and
// read by every later phase, matching §5's "per-question results are
// collected and then sorted ... before being passed to the next
// phase" ordering discipline.
type runState struct {
	in RunInput

	sentences []chunk.Sentence
	graph     chunk.ChunkGraph

	questions []questionnaire.Question
	relevant  map[string][]chunk.Chunk // keyed by question global id
	fallback  map[string]bool

	evidence map[string]scoring.Evidence // keyed by question global id

	scored []scoring.ScoredResult

	result RunResult
}

// pipelineHash hashes the resolved execution configuration's own
// canonical summary. pkg/config does not retain pipeline.yaml's raw
// bytes past parsing (only catalog.json/registry.json are kept
// verbatim, since only those two are content-addressed by the
// manifest's own schema), so this hashes a deterministic textual
// rendering of the resolved ExecutionConfig instead of the source
// YAML bytes.
func pipelineHash(cfg *config.Config) string {
	summary := fmt.Sprintf("%+v|%+v|%s|%d", cfg.Execution, cfg.CircuitBreaker, cfg.ArtifactsDir, cfg.RetentionDays)
	return config.HashFile([]byte(summary))
}

// environmentFingerprint captures the runtime environment named in
// the manifest schema's Environment block.
func environmentFingerprint() manifest.Environment {
	return manifest.Environment{
		RuntimeVersion: runtime.Version(),
		Platform:       fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		CPUCount:       runtime.NumCPU(),
	}
}

// sortedQuestionIDs returns the keys of m sorted ascending, used
// wherever a map keyed by question global id must be walked in
// deterministic order.
func sortedQuestionIDs[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
