package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-sales-etl/internal/model"
	"go-sales-etl/internal/quality"
	"go-sales-etl/internal/resilience"
)

// ReportSink receives the finished QualityReport for persistence.
// Write-once per run.
type ReportSink interface {
	SaveReport(runID string, report model.QualityReport) error
}

// RunObserver is notified with a run snapshot after every state
// transition. Observers must not block for long; they receive a copy
// and cannot mutate orchestrator state.
type RunObserver interface {
	OnTransition(run model.PipelineRun)
}

// Orchestrator sequences one pipeline run through
// extract → transform → quality-check → load. It owns the PipelineRun
// exclusively; external callers only ever see snapshots.
type Orchestrator struct {
	mu  sync.RWMutex
	run model.PipelineRun

	cfg       model.RunConfig
	source    model.Source
	extractor Extractor
	sink      Sink
	reports   ReportSink
	observer  RunObserver
	exec      *resilience.Executor
}

// Option customizes an orchestrator.
type Option func(*Orchestrator)

// WithReportSink wires the quality-report persistence target.
func WithReportSink(rs ReportSink) Option {
	return func(o *Orchestrator) { o.reports = rs }
}

// WithObserver wires a per-transition snapshot observer.
func WithObserver(obs RunObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithExecutor shares a cache/single-flight executor across runs; by
// default each orchestrator builds its own from the cache config.
func WithExecutor(exec *resilience.Executor) Option {
	return func(o *Orchestrator) { o.exec = exec }
}

// NewOrchestrator builds a run in the pending state. The configuration
// value is captured here; no stage reads ambient settings afterward.
func NewOrchestrator(cfg model.RunConfig, source model.Source, extractor Extractor, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		source:    source,
		extractor: extractor,
		sink:      sink,
		run: model.PipelineRun{
			RunID:     uuid.New().String(),
			Source:    source,
			Status:    model.StatusPending,
			StartedAt: time.Now().UTC(),
			Events:    []model.StatusEvent{{Status: model.StatusPending, At: time.Now().UTC()}},
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.exec == nil {
		o.exec = resilience.NewExecutor(resilience.NewCache(cfg.Cache.Capacity, cfg.Cache.TTL))
	}
	return o
}

// RunID returns the run's unique identifier.
func (o *Orchestrator) RunID() string {
	return o.run.RunID
}

// Snapshot returns a copy of the run for external callers. It is served
// from outside the stage critical section, so status queries are never
// blocked by a backoff sleep.
func (o *Orchestrator) Snapshot() model.PipelineRun {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.run.Clone()
}

// Run executes the pipeline end to end. Stages run strictly
// sequentially; each stage's output is the next stage's complete input.
// Returns nil when the run reaches COMPLETED — which it does even with a
// non-empty failed-record list; callers judge success by the counts.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Printf("🚀 run %s: starting pipeline for %s source %s", o.run.RunID, o.source.Type, o.source.URL)

	// --- EXTRACT ---
	o.transition(model.StatusExtracting)
	var raw model.RawBatch
	attempts, err := resilience.WithRetry(ctx, o.cfg.Retry, model.Retryable, func(ctx context.Context) error {
		batch, err := o.extractor.Extract(ctx, o.source)
		if err != nil {
			return err
		}
		raw = batch
		return nil
	})
	o.recordAttempts(attempts)
	if err != nil {
		return o.fail("extract", err)
	}
	o.updateCounts(func(c *model.RunCounts) { c.Extracted = len(raw) })
	log.Printf("📥 run %s: extracted %d records", o.run.RunID, len(raw))
	if err := ctx.Err(); err != nil {
		return o.fail("extract", model.NewError(model.ErrCancellationRequested, "extract", err))
	}

	// --- TRANSFORM (scoring drives repair/reject decisions) ---
	o.transition(model.StatusTransforming)
	rules := o.cfg.Rules
	if rules.AsOf.IsZero() {
		rules.AsOf = o.run.StartedAt
	}
	report, cached, err := o.scoreBatch(raw, rules)
	if err != nil {
		return o.fail("transform", err)
	}
	if cached {
		log.Printf("⚡ run %s: quality score served from cache", o.run.RunID)
	}
	clean, rejected := Transform(raw, report, o.cfg.Repair)
	o.updateCounts(func(c *model.RunCounts) {
		c.Transformed = len(clean)
		c.Rejected = len(rejected)
	})
	log.Printf("🔄 run %s: %d clean, %d rejected (overall score %.1f)",
		o.run.RunID, len(clean), len(rejected), report.OverallScore)
	if err := ctx.Err(); err != nil {
		return o.fail("transform", model.NewError(model.ErrCancellationRequested, "transform", err))
	}

	// --- QUALITY CHECK (attach + persist the report, write-once) ---
	o.transition(model.StatusQualityChecking)
	o.attachReport(report)
	if o.reports != nil {
		attempts, err := resilience.WithRetry(ctx, o.cfg.Retry, model.Retryable, func(ctx context.Context) error {
			if err := o.reports.SaveReport(o.run.RunID, report); err != nil {
				if _, classified := model.KindOf(err); classified {
					return err
				}
				return model.NewError(model.ErrSinkTransient, "quality_check", err)
			}
			return nil
		})
		o.recordAttempts(attempts)
		if err != nil {
			return o.fail("quality_check", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return o.fail("quality_check", model.NewError(model.ErrCancellationRequested, "quality_check", err))
	}

	// --- LOAD ---
	o.transition(model.StatusLoading)
	result, err := Load(ctx, clean, o.sink, o.cfg)
	o.recordAttempts(result.Attempts)
	o.updateCounts(func(c *model.RunCounts) {
		c.Loaded = result.Loaded
		c.FailedLoads = len(result.Failed)
	})
	if err != nil {
		return o.fail("load", err)
	}

	o.transition(model.StatusCompleted)
	log.Printf("🏁 run %s: completed — %d loaded, %d rejected, %d failed loads",
		o.run.RunID, result.Loaded, len(rejected), len(result.Failed))
	return nil
}

// scoreBatch computes the quality report through the cache/single-flight
// executor: a live cached report for the same batch and rules
// short-circuits the scorer entirely.
func (o *Orchestrator) scoreBatch(raw model.RawBatch, rules model.QualityRules) (model.QualityReport, bool, error) {
	input := struct {
		Batch model.RawBatch     `json:"batch"`
		Rules model.QualityRules `json:"rules"`
	}{Batch: raw, Rules: rules}

	out, cached, err := o.exec.Do("quality_score", input, func() (interface{}, error) {
		return quality.Score(raw, rules), nil
	})
	if err != nil {
		return model.QualityReport{}, false, err
	}
	report, ok := out.(model.QualityReport)
	if !ok {
		return model.QualityReport{}, false, fmt.Errorf("unexpected cached value for quality score")
	}
	return report, cached, nil
}

// transition moves the state machine forward and notifies observers.
// Transitions are one-directional; a terminal status is never left.
func (o *Orchestrator) transition(status model.RunStatus) {
	o.mu.Lock()
	if o.run.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	o.run.Status = status
	o.run.Events = append(o.run.Events, model.StatusEvent{Status: status, At: time.Now().UTC()})
	if status.Terminal() {
		now := time.Now().UTC()
		o.run.EndedAt = &now
	}
	snapshot := o.run.Clone()
	o.mu.Unlock()

	if o.observer != nil {
		o.observer.OnTransition(snapshot)
	}
}

// fail records the stage-level error and moves the run to FAILED.
func (o *Orchestrator) fail(stage string, err error) error {
	kind, _ := model.KindOf(err)
	o.mu.Lock()
	o.run.Errors = append(o.run.Errors, model.StageError{
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
		At:      time.Now().UTC(),
	})
	o.mu.Unlock()

	o.transition(model.StatusFailed)
	log.Printf("❌ run %s: %s stage failed: %v", o.run.RunID, stage, err)
	return err
}

func (o *Orchestrator) updateCounts(mutate func(*model.RunCounts)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	mutate(&o.run.Counts)
}

func (o *Orchestrator) recordAttempts(attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.run.RetryAttempts += attempts
}

func (o *Orchestrator) attachReport(report model.QualityReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run.Report == nil {
		o.run.Report = &report
	}
}
