package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Failure records one adapter that produced no postings this run.
type Failure struct {
	Company string
	Source  model.Source
	Err     error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.Company, f.Source, f.Err)
}

// Runner holds the configured adapters and runs them all to
// completion, tolerating individual failures. A failing adapter is
// logged and excluded from the aggregate; it never aborts the others.
type Runner struct {
	adapters       []model.Adapter
	maxParallel    int
	adapterTimeout time.Duration // 0 disables the per-adapter bound
	logger         *slog.Logger
}

// NewRunner creates a Runner. maxParallel bounds concurrent adapter
// runs; values below 1 run sequentially.
func NewRunner(adapters []model.Adapter, maxParallel int, adapterTimeout time.Duration, logger *slog.Logger) *Runner {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Runner{
		adapters:       adapters,
		maxParallel:    maxParallel,
		adapterTimeout: adapterTimeout,
		logger:         logger,
	}
}

// Len reports the number of registered adapters.
func (r *Runner) Len() int {
	return len(r.adapters)
}

type runResult struct {
	company  string
	source   model.Source
	postings []model.Posting
	err      error
}

// RunAll runs every adapter on a bounded worker pool and merges their
// postings. The aggregate carries no ordering guarantee; downstream
// reconciliation treats it as a set keyed by job id.
func (r *Runner) RunAll(ctx context.Context) ([]model.Posting, []Failure) {
	workers := r.maxParallel
	if workers > len(r.adapters) {
		workers = len(r.adapters)
	}

	tasks := make(chan model.Adapter)
	results := make(chan runResult, len(r.adapters))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range tasks {
				results <- r.runOne(ctx, a)
			}
		}()
	}

	for _, a := range r.adapters {
		tasks <- a
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []model.Posting
	var failures []Failure
	for res := range results {
		if res.err != nil {
			r.logger.Error("adapter failed",
				"company", res.company, "source", res.source, "error", res.err)
			failures = append(failures, Failure{Company: res.company, Source: res.source, Err: res.err})
			continue
		}
		r.logger.Info("adapter completed",
			"company", res.company, "source", res.source, "postings", len(res.postings))
		all = append(all, res.postings...)
	}
	return all, failures
}

func (r *Runner) runOne(ctx context.Context, a model.Adapter) runResult {
	if r.adapterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.adapterTimeout)
		defer cancel()
	}
	postings, err := a.Acquire(ctx)
	return runResult{company: a.Company(), source: a.Source(), postings: postings, err: err}
}
