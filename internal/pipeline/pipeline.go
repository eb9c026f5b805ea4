// Package pipeline runs one full tracking cycle: acquire postings from
// every enabled board, reconcile them against the registry, write the
// run artifacts, and report the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ReedRawlings/AIJobs/internal/adapter"
	"github.com/ReedRawlings/AIJobs/internal/model"
	"github.com/ReedRawlings/AIJobs/internal/output"
	"github.com/ReedRawlings/AIJobs/internal/reconcile"
)

var (
	// ErrNoAdapters means no enabled company produced a usable adapter.
	ErrNoAdapters = errors.New("no adapters configured")

	// ErrNoPostings means every board came back empty. Reconciling an
	// empty aggregate would close the entire registry, so the run stops
	// before touching it.
	ErrNoPostings = errors.New("no postings acquired")
)

// Pipeline owns one tracking cycle end to end. Construction wires the
// stages; Run executes them.
type Pipeline struct {
	runner   *adapter.Runner
	engine   *reconcile.Engine
	sink     *output.Sink
	recorder model.RunRecorder // nil disables the ledger
	notifier model.RunNotifier
	logger   *slog.Logger
}

// New creates a pipeline wired with all its stages.
func New(
	runner *adapter.Runner,
	engine *reconcile.Engine,
	sink *output.Sink,
	recorder model.RunRecorder,
	notifier model.RunNotifier,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		runner:   runner,
		engine:   engine,
		sink:     sink,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one cycle. day names the dated artifacts. The returned
// summary is always populated, also when err is non-nil; adapter
// failures alone do not fail the run.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (model.RunSummary, error) {
	sum := model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	p.logger.Info("run started", "run_id", sum.RunID, "companies", p.runner.Len())

	sum.Companies = p.runner.Len()
	if sum.Companies == 0 {
		return p.finish(ctx, sum, ErrNoAdapters)
	}

	postings, failures := p.runner.RunAll(ctx)
	sum.Postings = len(postings)
	for _, f := range failures {
		sum.Failures = append(sum.Failures, f.String())
	}

	if len(postings) == 0 {
		return p.finish(ctx, sum, ErrNoPostings)
	}

	res, err := p.engine.Run(postings)
	if res == nil {
		return p.finish(ctx, sum, fmt.Errorf("reconcile: %w", err))
	}
	sum.Appeared = res.Appeared
	sum.Updated = res.Updated
	sum.Closed = res.Closed

	// A registry persist failure still leaves usable in-memory results,
	// so the artifacts are written either way.
	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("reconcile: %w", err))
	}
	if werr := p.sink.WriteAll(res.Registry, res.Events, day); werr != nil {
		errs = append(errs, fmt.Errorf("outputs: %w", werr))
	}
	return p.finish(ctx, sum, errors.Join(errs...))
}

// finish stamps the summary, pushes the notification, and records the
// run in the ledger. Notification and ledger problems are logged, not
// escalated; they must not mask the run's own outcome.
func (p *Pipeline) finish(ctx context.Context, sum model.RunSummary, err error) (model.RunSummary, error) {
	sum.FinishedAt = time.Now().UTC()
	sum.Status = model.RunOK
	if err != nil {
		sum.Status = model.RunFailed
		sum.Err = err.Error()
	}

	if p.notifier != nil {
		if nerr := p.notifier.NotifyRun(ctx, sum); nerr != nil {
			p.logger.Error("run notification failed", "run_id", sum.RunID, "error", nerr)
		}
	}
	if p.recorder != nil {
		if rerr := p.recorder.Record(ctx, sum); rerr != nil {
			p.logger.Error("run ledger write failed", "run_id", sum.RunID, "error", rerr)
		}
	}

	if err != nil {
		p.logger.Error("run failed",
			"run_id", sum.RunID, "duration", sum.Duration().Round(time.Millisecond), "error", err)
	} else {
		p.logger.Info("run complete",
			"run_id", sum.RunID,
			"duration", sum.Duration().Round(time.Millisecond),
			"postings", sum.Postings,
			"appeared", sum.Appeared,
			"updated", sum.Updated,
			"closed", sum.Closed,
			"failures", len(sum.Failures))
	}
	return sum, err
}
