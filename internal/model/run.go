package model

import (
	"context"
	"time"
)

// RunStatus is the outcome recorded for one pipeline invocation.
type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunFailed RunStatus = "failed"
)

// RunSummary describes one completed (or failed) pipeline run. It feeds
// the CLI output, the run ledger, and the optional notification.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Companies  int // adapters that ran
	Postings   int // aggregate size after acquisition
	Appeared   int
	Updated    int
	Closed     int
	Failures   []string // per-adapter failure descriptions
	Err        string   // top-level error, empty on success
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunRecorder persists run summaries to a durable ledger.
type RunRecorder interface {
	Record(ctx context.Context, s RunSummary) error
}

// RunNotifier pushes a run summary to an external channel.
type RunNotifier interface {
	NotifyRun(ctx context.Context, s RunSummary) error
}
