// Package engine wires the analysis stages into a single pass:
// normalize, reconstruct, classify flows and detect anomalies, then assemble.
package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/flowlens/internal/anomaly"
	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/event"
	"github.com/gyaneshwarpardhi/flowlens/internal/flow"
	"github.com/gyaneshwarpardhi/flowlens/internal/metrics"
	"github.com/gyaneshwarpardhi/flowlens/internal/report"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// Engine runs analysis passes with the current configuration.
// It is safe for concurrent use; every Run builds its own state.
type Engine struct {
	pipeline atomic.Pointer[pipeline]
	extra    []anomaly.Detector
}

// pipeline is the immutable stage set derived from one configuration.
type pipeline struct {
	cfg        *config.AnalysisConfig
	classifier *flow.Classifier
	detectors  []anomaly.Detector
}

// New creates an Engine for a validated cfg. extra detectors run after the
// standard battery.
func New(cfg *config.AnalysisConfig, extra ...anomaly.Detector) *Engine {
	e := &Engine{extra: extra}
	e.Swap(cfg)
	return e
}

// Swap atomically replaces the configuration (used on hot-reload).
// Passes already running finish with the configuration they started with.
func (e *Engine) Swap(cfg *config.AnalysisConfig) {
	e.pipeline.Store(&pipeline{
		cfg:        cfg,
		classifier: flow.NewClassifier(cfg.Funnel, cfg.Insights),
		detectors:  append(anomaly.FromConfig(cfg), e.extra...),
	})
}

// Config returns the configuration new passes will use.
func (e *Engine) Config() *config.AnalysisConfig {
	return e.pipeline.Load().cfg
}

// Run performs one full analysis pass over records.
// Record-level problems never fail a pass; only cancellation does.
func (e *Engine) Run(ctx context.Context, records iter.Seq[event.RawRecord]) (*report.Report, error) {
	start := time.Now()
	p := e.pipeline.Load()

	norm := event.NewNormalizer()
	tl := session.Reconstruct(norm.Normalize(withContext(ctx, records)))
	if err := ctx.Err(); err != nil {
		metrics.AnalysesRun.WithLabelValues("canceled").Inc()
		return nil, fmt.Errorf("analysis interrupted after %d records: %w", norm.Seen(), err)
	}

	var (
		flows *flow.Result
		recs  []anomaly.Record
		errs  []error
	)
	if workers := p.cfg.Engine.Workers; workers > 1 {
		var err error
		flows, recs, errs, err = p.runParallel(ctx, tl, workers)
		if err != nil {
			metrics.AnalysesRun.WithLabelValues("canceled").Inc()
			return nil, err
		}
	} else {
		flows = p.classifier.Classify(tl)
		recs, errs = anomaly.Run(tl, p.detectors...)
	}

	for _, r := range recs {
		metrics.AnomaliesDetected.WithLabelValues(string(r.Kind), r.Severity.String()).Inc()
	}

	rep := report.Assemble(report.Inputs{
		RecordsRead:    norm.Seen(),
		EventsAccepted: norm.Accepted(),
		Rejections:     norm.Rejections(),
		Timeline:       tl,
		Flows:          flows,
		Anomalies:      recs,
		DetectorErrors: errs,
		TopN:           p.cfg.Insights.TopN,
	})

	status := "ok"
	if len(errs) > 0 {
		status = "degraded"
	}
	metrics.AnalysesRun.WithLabelValues(status).Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	slog.Info("analysis complete",
		"records", rep.Summary.RecordsRead,
		"rejected", rep.Summary.Rejected,
		"sessions", rep.Summary.Sessions,
		"anomalies", rep.Summary.Anomalies,
		"duration", time.Since(start))
	return rep, nil
}

// task is one unit of parallel work: the flow classifier over the whole
// timeline, or one detector over the timeline or one of its partitions.
type task struct {
	tl       *session.Timeline
	detector anomaly.Detector // nil means classify
}

type taskResult struct {
	flows *flow.Result
	recs  []anomaly.Record
}

// runParallel fans the stages out over a worker pool. Session-scoped detectors
// run once per user partition; global ones see the whole timeline. Results
// merge in task order and are re-ranked, so the outcome matches a serial pass.
func (p *pipeline) runParallel(ctx context.Context, tl *session.Timeline, workers int) (*flow.Result, []anomaly.Record, []error, error) {
	parts := tl.Partition(workers)

	tasks := []task{{tl: tl}}
	for _, d := range p.detectors {
		if d.Scope() == anomaly.ScopeGlobal || len(parts) == 1 {
			tasks = append(tasks, task{tl: tl, detector: d})
			continue
		}
		for _, part := range parts {
			tasks = append(tasks, task{tl: part, detector: d})
		}
	}

	pool := newWorkerPool(ctx, workers, len(tasks), func(_ context.Context, t task) (taskResult, error) {
		if t.detector == nil {
			return taskResult{flows: p.classifier.Classify(t.tl)}, nil
		}
		recs, err := anomaly.Safe(t.detector, t.tl)
		return taskResult{recs: recs}, err
	})
	for _, t := range tasks {
		pool.Submit(t)
	}
	results, taskErrs := pool.Drain()
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("analysis interrupted: %w", err)
	}

	var (
		recs   []anomaly.Record
		errs   []error
		failed = make(map[string]bool)
	)
	for i, res := range results {
		if err := taskErrs[i]; err != nil {
			// a detector that panics on several partitions is reported once
			if name := tasks[i].detector.Name(); !failed[name] {
				failed[name] = true
				errs = append(errs, err)
			}
			continue
		}
		recs = append(recs, res.recs...)
	}
	anomaly.Rank(recs)
	slog.Debug("parallel pass merged", "tasks", len(tasks), "partitions", len(parts))
	return results[0].flows, recs, errs, nil
}

// withContext stops the record sequence once ctx is done.
func withContext(ctx context.Context, records iter.Seq[event.RawRecord]) iter.Seq[event.RawRecord] {
	return func(yield func(event.RawRecord) bool) {
		for rec := range records {
			if ctx.Err() != nil || !yield(rec) {
				return
			}
		}
	}
}
