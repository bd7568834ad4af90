package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pdmcolombia/pdmaudit/pkg/aggregate"
	"github.com/pdmcolombia/pdmaudit/pkg/bayes"
	"github.com/pdmcolombia/pdmaudit/pkg/chunk"
	"github.com/pdmcolombia/pdmaudit/pkg/config"
	"github.com/pdmcolombia/pdmaudit/pkg/executor"
	"github.com/pdmcolombia/pdmaudit/pkg/manifest"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/questionnaire"
	"github.com/pdmcolombia/pdmaudit/pkg/scheduler"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
)

// phaseBootstrap confirms the collaborators passed in via Dependencies
// are internally consistent before any document-specific work begins:
// every calibration-required method actually has a registry entry,
// and the executor framework covers all 30 canonical base slots.
// Loading/freezing the catalog, calibration registry, and
// questionnaire bundle themselves happens once at process start (see
// cmd/pdmaudit), not per run.
func (o *Orchestrator) phaseBootstrap(_ context.Context, _ *runState) error {
	required := o.deps.Catalog.RequiredMethodIDs()
	if err := o.deps.Calibration.RequireAll(required); err != nil {
		return err
	}
	if o.deps.Framework.Len() != len(pdm.AllBaseSlots()) {
		return fmt.Errorf("executor framework has %d slots, want %d", o.deps.Framework.Len(), len(pdm.AllBaseSlots()))
	}
	return nil
}

// phaseIngestion extracts sentences from the run's document and, if an
// embedding provider is configured, embeds them in one batch call so
// pkg/chunk's semantic-similarity scoring has vectors to compare
// against (§4.1).
func (o *Orchestrator) phaseIngestion(ctx context.Context, run *runState) error {
	extracted, err := o.deps.Extractor.Extract(ctx, run.in.Document)
	if err != nil {
		return err
	}

	var embeddings [][]float64
	if o.deps.Embedder != nil {
		texts := make([]string, len(extracted))
		for i, s := range extracted {
			texts[i] = s.Text
		}
		if len(texts) > 0 {
			embeddings, err = o.deps.Embedder.Embed(ctx, texts)
			if err != nil {
				return err
			}
		}
	}

	sentences := make([]chunk.Sentence, len(extracted))
	for i, s := range extracted {
		var emb []float64
		if i < len(embeddings) {
			emb = embeddings[i]
		}
		sentences[i] = chunk.Sentence{
			Text:      s.Text,
			PageNum:   s.PageStart,
			Offset:    chunk.Offset{Start: s.OffsetStart, End: s.OffsetEnd},
			Embedding: emb,
		}
	}
	run.sentences = sentences
	return nil
}

// phaseChunking segments the run's sentences into the 60-cell
// ChunkGraph. The Chunker's own Build call is a single, indivisible
// pass over the whole document (cell classification scores every
// sentence against every cell at once, so the work cannot be split
// without re-scoring sentences multiple times) — it still runs through
// runPhaseTasks as one task so phase-level budget enforcement applies
// uniformly across every phase, parallel or not.
func (o *Orchestrator) phaseChunking(ctx context.Context, run *runState) error {
	chunker := chunk.NewChunker(o.deps.Ontology, o.deps.Labels, chunk.DefaultConfig(), o.deps.Seeds)
	return o.runPhaseTasks(ctx, PhaseChunking, []scheduler.Task{
		{
			ID: "build-chunk-graph",
			Run: func(ctx context.Context) error {
				graph, err := chunker.Build(run.sentences)
				if err != nil {
					return err
				}
				run.graph = graph
				return nil
			},
		},
	})
}

// phaseRouting resolves, for every canonical question, the chunks
// relevant to its executor within its policy area, fanning out one
// task per question (§5's bounded-parallelism phase 3).
func (o *Orchestrator) phaseRouting(ctx context.Context, run *runState) error {
	ids := o.deps.Questionnaire.GlobalIDs()
	sort.Strings(ids)

	questions := make([]questionnaire.Question, len(ids))
	for i, id := range ids {
		q, err := o.deps.Questionnaire.Lookup(id)
		if err != nil {
			return err
		}
		questions[i] = q
	}
	run.questions = questions

	relevant := make(map[string][]chunk.Chunk, len(questions))
	fallback := make(map[string]bool, len(questions))
	var mu sync.Mutex

	tasks := make([]scheduler.Task, len(questions))
	for i, q := range questions {
		q := q
		tasks[i] = scheduler.Task{
			ID: q.GlobalID,
			Run: func(ctx context.Context) error {
				chunks := o.deps.Router.RelevantChunks(q.BaseSlot, q.PolicyArea, run.graph)
				isFallback := len(chunks) == 0

				mu.Lock()
				relevant[q.GlobalID] = chunks
				fallback[q.GlobalID] = isFallback
				mu.Unlock()
				return nil
			},
		}
	}

	if err := o.runPhaseTasks(ctx, PhaseRouting, tasks); err != nil {
		return err
	}
	run.relevant = relevant
	run.fallback = fallback
	return nil
}

// phaseExecution runs each question's D{d}Q{q} executor against its
// routed chunks, one task per question (§5's bounded-parallelism phase
// 4, the heaviest stage). Each base slot's circuit breaker is shared
// across every policy area that instantiates it, consistent with
// "Circuit-breaker state is per-executor" (§4.5) — the executor here
// is identified by base slot alone.
func (o *Orchestrator) phaseExecution(ctx context.Context, run *runState) error {
	evidence := make(map[string]scoring.Evidence, len(run.questions))
	var mu sync.Mutex

	cfg := o.deps.Config.Execution

	// Create every base slot's breaker before fan-out: breakerFor writes
	// o.breakers, and the concurrent tasks below then only read it.
	for _, q := range run.questions {
		o.breakerFor(q.BaseSlot.String())
	}

	tasks := make([]scheduler.Task, len(run.questions))
	for i, q := range run.questions {
		q := q
		tasks[i] = scheduler.Task{
			ID: q.GlobalID,
			Run: func(ctx context.Context) error {
				ex, err := o.deps.Framework.For(q.BaseSlot)
				if err != nil {
					return fmt.Errorf("%w: %s", ErrMissingExecutor, q.BaseSlot)
				}

				cb := o.breakerFor(q.BaseSlot.String())
				result, err := executor.Execute(
					ctx, ex, q.PolicyArea, q.RequiredElements, run.graph, o.deps.Router,
					o.deps.Methods, o.deps.Calibration, run.in.UnitOfAnalysis,
					executor.RunConfig{Retry: cfg.Retry}, cb,
				)
				if err != nil {
					return fmt.Errorf("%s: %w", q.GlobalID, err)
				}

				mu.Lock()
				evidence[q.GlobalID] = result.Evidence
				mu.Unlock()
				return nil
			},
		}
	}

	if err := o.runPhaseTasks(ctx, PhaseExecution, tasks); err != nil {
		return err
	}
	run.evidence = evidence
	return nil
}

// phaseBayesUpdate derives one probative-test observation per executed
// method from its reported confidence and chains them through an
// exact Bayesian update (§4.6), recording the resulting posterior
// alongside each question's evidence. Method bodies in this module
// report only a scalar confidence, not a structured probative-test
// declaration, so each confidence value becomes a hoop test (moderate
// specificity) that the method "passed" when confidence >= 0.5 —
// giving every wired method a concrete path into the evidence engine
// without inventing a richer contract than the method registry itself
// provides.
func (o *Orchestrator) phaseBayesUpdate(ctx context.Context, run *runState) error {
	const priorBelief = 0.5
	const defaultSpecificity = 0.7

	evidence := run.evidence
	var mu sync.Mutex

	ids := sortedQuestionIDs(evidence)
	tasks := make([]scheduler.Task, len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = scheduler.Task{
			ID: id,
			Run: func(ctx context.Context) error {
				ev := evidence[id]

				methodIDs := make([]string, 0, len(ev.MethodConfidence))
				for m := range ev.MethodConfidence {
					methodIDs = append(methodIDs, m)
				}
				sort.Strings(methodIDs)

				obs := make([]bayes.Observation, 0, len(methodIDs))
				for _, m := range methodIDs {
					conf := ev.MethodConfidence[m]
					test, err := bayes.NewProbativeTest(bayes.KindHoop, conf, defaultSpecificity)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					obs = append(obs, bayes.Observation{Test: test, Passed: conf >= 0.5})
				}

				posterior := priorBelief
				if len(obs) > 0 {
					var err error
					posterior, _, err = bayes.UpdateSequence(priorBelief, obs)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
				}

				mu.Lock()
				if ev.RawResults == nil {
					ev.RawResults = map[string]any{}
				}
				ev.RawResults["bayesian_posterior"] = posterior
				evidence[id] = ev
				mu.Unlock()
				return nil
			},
		}
	}

	return o.runPhaseTasks(ctx, PhaseBayesUpdate, tasks)
}

// phaseScoring computes each question's ScoredResult under its
// modality, in deterministic global-id order. This phase is not in
// §5's parallel list: each call is cheap arithmetic, and keeping it
// single-threaded means the scored slice is already ordered going into
// phase7's explicit sort, rather than needing a post-hoc reorder of
// concurrently-produced results.
func (o *Orchestrator) phaseScoring(_ context.Context, run *runState) error {
	scored := make([]scoring.ScoredResult, 0, len(run.questions))
	for _, q := range run.questions {
		ev := run.evidence[q.GlobalID]
		th := q.EffectiveThresholds()

		var (
			sr  scoring.ScoredResult
			err error
		)
		switch q.Modality {
		case scoring.TypeA:
			sr, err = scoring.ScoreTypeA(q.GlobalID, q.BaseSlot, q.PolicyArea, q.Dimension, ev, th)
		case scoring.TypeB:
			sr, err = scoring.ScoreTypeB(q.GlobalID, q.BaseSlot, q.PolicyArea, q.Dimension, ev, scoring.ScaleZeroToThree, th)
		default:
			err = fmt.Errorf("question %s has unknown modality %q", q.GlobalID, q.Modality)
		}
		if err != nil {
			return err
		}
		scored = append(scored, sr)
	}
	run.scored = scored
	return nil
}

// phaseCollection pins the final ordering every later phase depends
// on: scored results sorted by question_global (§5).
func (o *Orchestrator) phaseCollection(_ context.Context, run *runState) error {
	sort.Slice(run.scored, func(i, j int) bool {
		return run.scored[i].QuestionGlobalID < run.scored[j].QuestionGlobalID
	})
	return nil
}

// phaseAggregation folds the sorted scored results up the cascade:
// Dimension -> Area -> Cluster -> Macro (§4.8). The 60 (policy area,
// dimension) cells are independent folds and run as one task apiece
// (§5's bounded-parallelism phase 8); the three coarser tiers are
// cheap closed-form folds over already-computed children and run
// sequentially right after.
func (o *Orchestrator) phaseAggregation(ctx context.Context, run *runState) error {
	th := dispersionThresholds(o.deps.Config)

	byCell := make(map[chunk.CellKey][]scoring.ScoredResult)
	for _, sr := range run.scored {
		key := chunk.CellKey{PolicyArea: sr.PolicyArea, Dimension: sr.Dimension}
		byCell[key] = append(byCell[key], sr)
	}

	cells := chunk.AllCellKeys()
	dims := make([]DimensionResult, len(cells))
	cellErrs := make([]error, len(cells))

	tasks := make([]scheduler.Task, len(cells))
	for i, cell := range cells {
		i, cell := i, cell
		tasks[i] = scheduler.Task{
			ID: cell.String(),
			Run: func(ctx context.Context) error {
				members := make([]aggregate.Member, 0, 5)
				for _, sr := range byCell[cell] {
					members = append(members, aggregate.Member{
						ID:     sr.QuestionGlobalID,
						Score:  sr.Score,
						Weight: 1,
						Sign:   aggregate.SignOf(sr.Score, aggregationScale),
					})
				}
				if len(members) == 0 {
					return nil // a cell with no scored questions contributes nothing
				}
				d, err := aggregate.AggregateDimension(cell.PolicyArea, cell.Dimension, members, th)
				if err != nil {
					cellErrs[i] = err
					return err
				}
				dims[i] = d
				return nil
			},
		}
	}

	if err := o.runPhaseTasks(ctx, PhaseAggregation, tasks); err != nil {
		return err
	}
	for _, err := range cellErrs {
		if err != nil {
			return err
		}
	}

	nonEmptyDims := make([]DimensionResult, 0, len(dims))
	for _, d := range dims {
		if d.GroupKey != "" {
			nonEmptyDims = append(nonEmptyDims, d)
		}
	}

	byPA := make(map[pdm.PolicyArea][]DimensionResult)
	for _, d := range nonEmptyDims {
		byPA[d.PolicyArea] = append(byPA[d.PolicyArea], d)
	}

	areas := make([]AreaResult, 0, len(pdm.PolicyAreas))
	for _, pa := range pdm.PolicyAreas {
		ds, ok := byPA[pa]
		if !ok || len(ds) == 0 {
			continue
		}
		members := make([]aggregate.Member, len(ds))
		for i, d := range ds {
			members[i] = aggregate.Member{ID: d.GroupKey, Score: d.Score, Weight: 1, Sign: aggregate.SignOf(d.Score, aggregationScale)}
		}
		a, err := aggregate.AggregateArea(pa, members, th)
		if err != nil {
			return err
		}
		areas = append(areas, a)
	}

	byCluster := make(map[pdm.Cluster][]AreaResult)
	for _, a := range areas {
		cluster, err := o.deps.Questionnaire.ClusterOf(a.PolicyArea)
		if err != nil {
			return err
		}
		byCluster[cluster] = append(byCluster[cluster], a)
	}

	clusters := make([]ClusterResult, 0, len(pdm.Clusters))
	for _, cluster := range pdm.Clusters {
		as, ok := byCluster[cluster]
		if !ok || len(as) == 0 {
			continue
		}
		members := make([]aggregate.Member, len(as))
		for i, a := range as {
			members[i] = aggregate.Member{ID: a.GroupKey, Score: a.Score, Weight: 1, Sign: aggregate.SignOf(a.Score, aggregationScale)}
		}
		c, err := aggregate.AggregateCluster(cluster, members, th)
		if err != nil {
			return err
		}
		clusters = append(clusters, c)
	}

	if len(clusters) == 0 {
		return fmt.Errorf("aggregation produced zero clusters")
	}
	clusterMembers := make([]aggregate.Member, len(clusters))
	for i, c := range clusters {
		clusterMembers[i] = aggregate.Member{ID: c.GroupKey, Score: c.Score, Weight: 1, Sign: aggregate.SignOf(c.Score, aggregationScale)}
	}
	macro, err := aggregate.AggregateMacro(clusterMembers, th)
	if err != nil {
		return err
	}

	run.result.Dimensions = nonEmptyDims
	run.result.Areas = areas
	run.result.Clusters = clusters
	run.result.Macro = macro
	return nil
}

// phaseSealing stamps the determinism block and signs the manifest.
// Sealing a run that did not complete every required phase is
// impossible by construction: Run aborts before reaching this phase
// if any earlier one failed.
func (o *Orchestrator) phaseSealing(_ context.Context, run *runState) error {
	m, err := o.manifest.Seal(o.deps.Seeds, o.deps.HMACKey)
	if err != nil {
		return err
	}
	run.result.Manifest = m
	run.result.Scored = run.scored
	return nil
}

// phaseOutput writes every independent output artifact — the signed
// proof pair, the human-readable results report, and the run ledger
// row — concurrently (§5's bounded-parallelism phase 10).
func (o *Orchestrator) phaseOutput(ctx context.Context, run *runState) error {
	artifactsDir := o.deps.Config.ArtifactsDir
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return fmt.Errorf("creating artifacts dir: %w", err)
	}

	tasks := []scheduler.Task{
		{
			ID: "write-proof",
			Run: func(ctx context.Context) error {
				proof, err := manifest.BuildProof(run.result.Manifest)
				if err != nil {
					return err
				}
				return proof.WriteToDir(artifactsDir)
			},
		},
		{
			ID: "write-report",
			Run: func(ctx context.Context) error {
				return writeReport(artifactsDir, run.result)
			},
		},
		{
			ID: "write-timeline",
			Run: func(ctx context.Context) error {
				return writeTimeline(artifactsDir, o.timeline.Events())
			},
		},
	}
	if o.deps.Runs != nil {
		tasks = append(tasks, scheduler.Task{
			ID: "seal-run-row",
			Run: func(ctx context.Context) error {
				return o.deps.Runs.SealRun(ctx, run.in.RunID, run.result.Manifest, run.result.Manifest.IntegrityHMAC, time.Now().UTC())
			},
		})
	}

	return o.runPhaseTasks(ctx, PhaseOutput, tasks)
}

// dispersionThresholds resolves the configured dispersion overrides,
// falling back to the canonical defaults when pipeline.yaml omits the
// dispersion block.
func dispersionThresholds(cfg *config.Config) bayes.DispersionThresholds {
	if cfg.Dispersion == nil {
		return bayes.DefaultDispersionThresholds()
	}
	return bayes.DispersionThresholds{CV: cfg.Dispersion.CV, Gap: cfg.Dispersion.Gap, Gini: cfg.Dispersion.Gini}
}

// reportDocument is the JSON shape of phase10's human-readable results
// artifact: the per-question scores plus every cascade tier, rendered
// through each tier's own Fields() method.
type reportDocument struct {
	RunID      string           `json:"run_id"`
	Scored     []scoredRow      `json:"scored"`
	Dimensions []map[string]any `json:"dimensions"`
	Areas      []map[string]any `json:"areas"`
	Clusters   []map[string]any `json:"clusters"`
	Macro      map[string]any   `json:"macro"`
}

type scoredRow struct {
	QuestionGlobalID string            `json:"question_global_id"`
	BaseSlot         string            `json:"base_slot"`
	PolicyArea       pdm.PolicyArea    `json:"policy_area"`
	Dimension        pdm.Dimension     `json:"dimension"`
	Modality         scoring.Modality  `json:"modality"`
	Score            float64           `json:"score"`
	QualityLevel     pdm.QualityLevel  `json:"quality_level"`
}

func writeReport(artifactsDir string, result RunResult) error {
	doc := reportDocument{
		RunID:  result.Manifest.RunID,
		Macro:  result.Macro.Fields(),
	}
	for _, sr := range result.Scored {
		doc.Scored = append(doc.Scored, scoredRow{
			QuestionGlobalID: sr.QuestionGlobalID,
			BaseSlot:         sr.BaseSlot.String(),
			PolicyArea:       sr.PolicyArea,
			Dimension:        sr.Dimension,
			Modality:         sr.Modality,
			Score:            sr.Score,
			QualityLevel:     sr.QualityLevel,
		})
	}
	for _, d := range result.Dimensions {
		doc.Dimensions = append(doc.Dimensions, d.Fields())
	}
	for _, a := range result.Areas {
		doc.Areas = append(doc.Areas, a.Fields())
	}
	for _, c := range result.Clusters {
		doc.Clusters = append(doc.Clusters, c.Fields())
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(artifactsDir, "results.json"), payload, 0o644)
}

func writeTimeline(artifactsDir string, events any) error {
	payload, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(artifactsDir, "timeline.json"), payload, 0o644)
}
