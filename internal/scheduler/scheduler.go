package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. It must honor ctx cancellation.
type Job func(ctx context.Context)

// Scheduler runs a job on a fixed interval. A tick that fires while the
// previous run is still in flight is skipped, so at most one run is
// ever active.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *slog.Logger
}

// New creates a scheduler that runs job every interval.
func New(interval time.Duration, job Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Run executes the job once immediately, then on every tick until ctx
// is cancelled. It returns nil after any in-flight run has finished
// (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))

	spec := fmt.Sprintf("@every %s", s.interval)
	id, err := c.AddFunc(spec, func() { s.job(ctx) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	s.logger.Info("starting scheduler", "interval", s.interval.String())
	c.Start()

	// First run fires right away. It goes through the wrapped job so
	// the skip guard also covers the startup run.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Entry(id).WrappedJob.Run()
	}()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.logger.Info(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, kv...)...)
}
