package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReedRawlings/AIJobs/internal/adapter"
	"github.com/ReedRawlings/AIJobs/internal/model"
	"github.com/ReedRawlings/AIJobs/internal/output"
	"github.com/ReedRawlings/AIJobs/internal/reconcile"
)

var testDay = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAdapter struct {
	company  string
	source   model.Source
	postings []model.Posting
	err      error
}

func (s *stubAdapter) Acquire(context.Context) ([]model.Posting, error) {
	return s.postings, s.err
}
func (s *stubAdapter) Company() string      { return s.company }
func (s *stubAdapter) Source() model.Source { return s.source }

type stubRecorder struct {
	recorded []model.RunSummary
	err      error
}

func (r *stubRecorder) Record(_ context.Context, s model.RunSummary) error {
	r.recorded = append(r.recorded, s)
	return r.err
}

type stubNotifier struct {
	notified []model.RunSummary
	err      error
}

func (n *stubNotifier) NotifyRun(_ context.Context, s model.RunSummary) error {
	n.notified = append(n.notified, s)
	return n.err
}

func boardPostings(company string, n int) []model.Posting {
	out := make([]model.Posting, n)
	for i := range out {
		ext := fmt.Sprintf("%s-%d", company, i+1)
		out[i] = model.Posting{
			JobID:      model.MakeJobID(model.SourceGreenhouse, company, ext),
			Source:     model.SourceGreenhouse,
			Company:    company,
			ExternalID: ext,
			Title:      "Engineer " + ext,
			Location:   "Remote",
		}
	}
	return out
}

type testPipeline struct {
	*Pipeline
	dir      string
	recorder *stubRecorder
	notifier *stubNotifier
}

func newTestPipeline(t *testing.T, adapters ...model.Adapter) *testPipeline {
	t.Helper()
	dir := t.TempDir()
	logger := discardLogger()
	rec := &stubRecorder{}
	not := &stubNotifier{}
	p := New(
		adapter.NewRunner(adapters, 2, 0, logger),
		reconcile.NewEngine(filepath.Join(dir, "registry.json"), logger),
		output.NewSink(filepath.Join(dir, "outputs"), logger),
		rec,
		not,
		logger,
	)
	return &testPipeline{Pipeline: p, dir: dir, recorder: rec, notifier: not}
}

func TestRunHappyPath(t *testing.T) {
	p := newTestPipeline(t,
		&stubAdapter{company: "acme", source: model.SourceGreenhouse, postings: boardPostings("acme", 2)},
		&stubAdapter{company: "globex", source: model.SourceGreenhouse, postings: boardPostings("globex", 1)},
	)

	sum, err := p.Run(context.Background(), testDay)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, model.RunOK, sum.Status)
	assert.Equal(t, 2, sum.Companies)
	assert.Equal(t, 3, sum.Postings)
	assert.Equal(t, 3, sum.Appeared)
	assert.Zero(t, sum.Updated)
	assert.Zero(t, sum.Closed)
	assert.Empty(t, sum.Failures)

	assert.FileExists(t, filepath.Join(p.dir, "registry.json"))
	assert.FileExists(t, filepath.Join(p.dir, "outputs", "registry", "current_jobs.csv"))
	assert.FileExists(t, filepath.Join(p.dir, "outputs", "snapshots", "2026-03-02.csv"))
	assert.FileExists(t, filepath.Join(p.dir, "outputs", "events", "2026-03-02.csv"))

	require.Len(t, p.recorder.recorded, 1)
	assert.Equal(t, sum.RunID, p.recorder.recorded[0].RunID)
	require.Len(t, p.notifier.notified, 1)
	assert.Equal(t, 3, p.notifier.notified[0].Appeared)
}

func TestRunNoAdapters(t *testing.T) {
	p := newTestPipeline(t)

	sum, err := p.Run(context.Background(), testDay)
	require.ErrorIs(t, err, ErrNoAdapters)
	assert.Equal(t, model.RunFailed, sum.Status)

	// The failed run still lands in the ledger.
	require.Len(t, p.recorder.recorded, 1)
	assert.Equal(t, model.RunFailed, p.recorder.recorded[0].Status)
}

func TestRunNoPostingsLeavesRegistryAlone(t *testing.T) {
	p := newTestPipeline(t,
		&stubAdapter{company: "acme", source: model.SourceGreenhouse},
	)

	sum, err := p.Run(context.Background(), testDay)
	require.ErrorIs(t, err, ErrNoPostings)
	assert.Equal(t, model.RunFailed, sum.Status)

	_, statErr := os.Stat(filepath.Join(p.dir, "registry.json"))
	assert.True(t, os.IsNotExist(statErr), "registry must not be touched when nothing was acquired")
}

func TestRunPartialAdapterFailure(t *testing.T) {
	p := newTestPipeline(t,
		&stubAdapter{company: "acme", source: model.SourceGreenhouse, postings: boardPostings("acme", 2)},
		&stubAdapter{company: "globex", source: model.SourceLever, err: errors.New("boom")},
	)

	sum, err := p.Run(context.Background(), testDay)
	require.NoError(t, err, "one failing adapter must not fail the run")

	assert.Equal(t, model.RunOK, sum.Status)
	assert.Equal(t, 2, sum.Postings)
	assert.Equal(t, 2, sum.Appeared)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "globex (lever): boom", sum.Failures[0])
}

func TestRunSecondCycleDetectsChanges(t *testing.T) {
	first := boardPostings("acme", 2)
	src := &stubAdapter{company: "acme", source: model.SourceGreenhouse, postings: first}
	p := newTestPipeline(t, src)

	_, err := p.Run(context.Background(), testDay)
	require.NoError(t, err)

	// Next cycle: one posting changes, one disappears, one is new.
	second := boardPostings("acme", 1)
	second[0].Title = "Staff Engineer acme-1"
	second = append(second, boardPostings("newco", 1)...)
	src.postings = second

	sum, err := p.Run(context.Background(), testDay.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Appeared)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Closed)
	assert.FileExists(t, filepath.Join(p.dir, "outputs", "events", "2026-03-03.csv"))
}

func TestRunPersistFailureStillWritesOutputs(t *testing.T) {
	logger := discardLogger()
	outDir := t.TempDir()
	rec := &stubRecorder{}
	p := New(
		adapter.NewRunner([]model.Adapter{
			&stubAdapter{company: "acme", source: model.SourceGreenhouse, postings: boardPostings("acme", 1)},
		}, 1, 0, logger),
		// Pointing the registry at a directory makes the persist step
		// fail after a successful reconciliation.
		reconcile.NewEngine(t.TempDir(), logger),
		output.NewSink(outDir, logger),
		rec,
		&stubNotifier{},
		logger,
	)

	sum, err := p.Run(context.Background(), testDay)
	require.Error(t, err)
	assert.ErrorContains(t, err, "reconcile")

	assert.Equal(t, model.RunFailed, sum.Status)
	assert.Equal(t, 1, sum.Appeared, "in-memory results survive the persist failure")
	assert.FileExists(t, filepath.Join(outDir, "snapshots", "2026-03-02.csv"))
	require.Len(t, rec.recorded, 1)
}

func TestRunNotifierErrorDoesNotFailRun(t *testing.T) {
	p := newTestPipeline(t,
		&stubAdapter{company: "acme", source: model.SourceGreenhouse, postings: boardPostings("acme", 1)},
	)
	p.notifier.err = errors.New("webhook down")

	sum, err := p.Run(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, model.RunOK, sum.Status)
}
