package reconcile

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

var (
	run1Time = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	run2Time = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	run3Time = time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(filepath.Join(t.TempDir(), "registry.json"), discardLogger())
}

func mkPosting(externalID, title string) model.Posting {
	return model.Posting{
		JobID:      model.MakeJobID(model.SourceGreenhouse, "acme", externalID),
		Source:     model.SourceGreenhouse,
		Company:    "acme",
		ExternalID: externalID,
		Title:      title,
		Team:       "Research",
		Location:   "New York, NY",
		JobURL:     "https://example.com/jobs/" + externalID,
	}
}

func runAt(t *testing.T, eng *Engine, at time.Time, postings ...model.Posting) *Result {
	t.Helper()
	eng.now = func() time.Time { return at }
	res, err := eng.Run(postings)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestRunFreshRegistry(t *testing.T) {
	eng := testEngine(t)

	res := runAt(t, eng, run1Time, mkPosting("1", "Engineer"), mkPosting("2", "Scientist"))

	if res.Appeared != 2 || res.Updated != 0 || res.Unchanged != 0 || res.Closed != 0 {
		t.Fatalf("counts = %+v, want 2 appeared only", res)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(res.Events))
	}
	for _, ev := range res.Events {
		if ev.Type != model.EventAppeared {
			t.Errorf("event type = %q, want %q", ev.Type, model.EventAppeared)
		}
		if ev.PreviousData != nil {
			t.Error("appeared event should carry no previous state")
		}
		if ev.NewData == nil {
			t.Fatal("appeared event missing new state")
		}
		if ev.NewData.Status != model.StatusNew {
			t.Errorf("status = %q, want %q", ev.NewData.Status, model.StatusNew)
		}
		if !ev.NewData.FirstSeen.Equal(run1Time) || !ev.NewData.LastSeen.Equal(run1Time) {
			t.Errorf("timestamps = %v/%v, want both %v", ev.NewData.FirstSeen, ev.NewData.LastSeen, run1Time)
		}
	}

	// The registry survives the process: a fresh load sees both postings.
	reloaded := LoadRegistry(eng.registryPath, discardLogger())
	if len(reloaded) != 2 {
		t.Fatalf("reloaded registry has %d postings, want 2", len(reloaded))
	}
}

func TestRunUnchangedInputIsIdempotent(t *testing.T) {
	eng := testEngine(t)
	postings := []model.Posting{mkPosting("1", "Engineer"), mkPosting("2", "Scientist")}

	runAt(t, eng, run1Time, postings...)
	res := runAt(t, eng, run2Time, postings...)

	if len(res.Events) != 0 {
		t.Fatalf("got %d events on unchanged input, want 0", len(res.Events))
	}
	if res.Unchanged != 2 {
		t.Fatalf("unchanged = %d, want 2", res.Unchanged)
	}
	for id, p := range res.Registry {
		if p.Status != model.StatusActive {
			t.Errorf("%s status = %q, want %q", id, p.Status, model.StatusActive)
		}
		if !p.FirstSeen.Equal(run1Time) {
			t.Errorf("%s first_seen = %v, want preserved %v", id, p.FirstSeen, run1Time)
		}
		if !p.LastSeen.Equal(run2Time) {
			t.Errorf("%s last_seen = %v, want advanced to %v", id, p.LastSeen, run2Time)
		}
		if p.UpdatedAt != nil {
			t.Errorf("%s updated_at = %v, want nil", id, p.UpdatedAt)
		}
	}
}

func TestRunUpdate(t *testing.T) {
	eng := testEngine(t)

	runAt(t, eng, run1Time, mkPosting("1", "Engineer"))
	res := runAt(t, eng, run2Time, mkPosting("1", "Senior Engineer"))

	if res.Updated != 1 || len(res.Events) != 1 {
		t.Fatalf("updated = %d events = %d, want 1/1", res.Updated, len(res.Events))
	}
	ev := res.Events[0]
	if ev.Type != model.EventUpdated {
		t.Fatalf("event type = %q, want %q", ev.Type, model.EventUpdated)
	}
	if ev.PreviousData == nil || ev.NewData == nil {
		t.Fatal("updated event must carry both states")
	}
	if ev.PreviousData.Title != "Engineer" || ev.NewData.Title != "Senior Engineer" {
		t.Errorf("titles = %q -> %q, want Engineer -> Senior Engineer", ev.PreviousData.Title, ev.NewData.Title)
	}
	if ev.NewData.Status != model.StatusUpdated {
		t.Errorf("status = %q, want %q", ev.NewData.Status, model.StatusUpdated)
	}
	if ev.NewData.UpdatedAt == nil || !ev.NewData.UpdatedAt.Equal(run2Time) {
		t.Errorf("updated_at = %v, want %v", ev.NewData.UpdatedAt, run2Time)
	}
	if !ev.NewData.FirstSeen.Equal(run1Time) {
		t.Errorf("first_seen = %v, want preserved %v", ev.NewData.FirstSeen, run1Time)
	}

	// A second change still reports the original first_seen.
	res = runAt(t, eng, run3Time, mkPosting("1", "Staff Engineer"))
	got := res.Registry[model.MakeJobID(model.SourceGreenhouse, "acme", "1")]
	if !got.FirstSeen.Equal(run1Time) {
		t.Errorf("first_seen after two updates = %v, want %v", got.FirstSeen, run1Time)
	}
}

func TestRunCompareFields(t *testing.T) {
	base := mkPosting("1", "Engineer")

	tests := []struct {
		name       string
		mutate     func(*model.Posting)
		wantEvents int
	}{
		{"raw data only", func(p *model.Posting) { p.RawData = json.RawMessage(`{"etag":"v2"}`) }, 0},
		{"job url only", func(p *model.Posting) { p.JobURL = "https://example.com/moved" }, 0},
		{"apply url only", func(p *model.Posting) { p.ApplyURL = "https://example.com/apply" }, 0},
		{"requirements only", func(p *model.Posting) { p.Requirements = []string{"5 years Go"} }, 0},
		{"salary only", func(p *model.Posting) { p.SalaryRange = "$200k-$250k" }, 0},
		{"remote policy only", func(p *model.Posting) { p.RemotePolicy = "hybrid" }, 0},
		{"title", func(p *model.Posting) { p.Title = "Staff Engineer" }, 1},
		{"team", func(p *model.Posting) { p.Team = "Platform" }, 1},
		{"location", func(p *model.Posting) { p.Location = "Remote" }, 1},
		{"employment type", func(p *model.Posting) { p.EmploymentType = "Contract" }, 1},
		{"description", func(p *model.Posting) { p.Description = "New scope" }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := testEngine(t)
			runAt(t, eng, run1Time, base)

			changed := base
			tt.mutate(&changed)
			res := runAt(t, eng, run2Time, changed)

			if len(res.Events) != tt.wantEvents {
				t.Fatalf("got %d events, want %d", len(res.Events), tt.wantEvents)
			}
			if tt.wantEvents == 1 && res.Events[0].Type != model.EventUpdated {
				t.Errorf("event type = %q, want %q", res.Events[0].Type, model.EventUpdated)
			}
		})
	}
}

func TestRunClosure(t *testing.T) {
	eng := testEngine(t)

	runAt(t, eng, run1Time, mkPosting("A", "Engineer"), mkPosting("B", "Scientist"))
	res := runAt(t, eng, run2Time, mkPosting("A", "Engineer"))

	if res.Closed != 1 || len(res.Events) != 1 {
		t.Fatalf("closed = %d events = %d, want 1/1", res.Closed, len(res.Events))
	}
	ev := res.Events[0]
	closedID := model.MakeJobID(model.SourceGreenhouse, "acme", "B")
	if ev.Type != model.EventClosed || ev.JobID != closedID {
		t.Fatalf("event = %s %s, want %s %s", ev.Type, ev.JobID, model.EventClosed, closedID)
	}
	if ev.NewData != nil {
		t.Error("closed event should carry no new state")
	}
	if ev.PreviousData == nil || ev.PreviousData.Title != "Scientist" {
		t.Fatalf("closed event previous state = %+v, want the Scientist posting", ev.PreviousData)
	}

	got, ok := res.Registry[closedID]
	if !ok {
		t.Fatal("closed posting missing from registry")
	}
	if got.Status != model.StatusClosed {
		t.Errorf("status = %q, want %q", got.Status, model.StatusClosed)
	}
	if got.Title != "Scientist" {
		t.Errorf("title = %q, want descriptive fields preserved", got.Title)
	}
	if !got.FirstSeen.Equal(run1Time) || !got.LastSeen.Equal(run1Time) {
		t.Errorf("timestamps = %v/%v, want both frozen at %v", got.FirstSeen, got.LastSeen, run1Time)
	}

	if active := res.Registry.Active(); len(active) != 1 || active[0].ExternalID != "A" {
		t.Errorf("active postings = %v, want only A", active)
	}
	if all := res.Registry.All(); len(all) != 2 {
		t.Errorf("all postings = %d, want 2 including the closed one", len(all))
	}
}

func TestRunClosedRecordEvictedNextRun(t *testing.T) {
	eng := testEngine(t)

	runAt(t, eng, run1Time, mkPosting("A", "Engineer"), mkPosting("B", "Scientist"))
	runAt(t, eng, run2Time, mkPosting("A", "Engineer"))
	res := runAt(t, eng, run3Time, mkPosting("A", "Engineer"))

	if len(res.Events) != 0 || res.Closed != 0 {
		t.Fatalf("got %d events (%d closed) on the run after a closure, want none", len(res.Events), res.Closed)
	}
	if len(res.Registry) != 1 {
		t.Fatalf("registry has %d postings, want 1 after the closed record aged out", len(res.Registry))
	}
}

func TestRunReappearAfterClosure(t *testing.T) {
	eng := testEngine(t)

	runAt(t, eng, run1Time, mkPosting("A", "Engineer"))
	runAt(t, eng, run2Time, mkPosting("B", "Scientist"))
	res := runAt(t, eng, run3Time, mkPosting("A", "Engineer"), mkPosting("B", "Scientist"))

	if res.Appeared != 1 || res.Unchanged != 1 {
		t.Fatalf("appeared = %d unchanged = %d, want 1/1", res.Appeared, res.Unchanged)
	}
	if len(res.Events) != 1 || res.Events[0].Type != model.EventAppeared {
		t.Fatalf("events = %v, want a single appeared event", res.Events)
	}
	got := res.Registry[model.MakeJobID(model.SourceGreenhouse, "acme", "A")]
	if got.Status != model.StatusNew {
		t.Errorf("status = %q, want %q for a fresh lifecycle", got.Status, model.StatusNew)
	}
	if !got.FirstSeen.Equal(run3Time) {
		t.Errorf("first_seen = %v, want %v, not the pre-closure value", got.FirstSeen, run3Time)
	}
}

func TestRunPartition(t *testing.T) {
	eng := testEngine(t)

	runAt(t, eng, run1Time, mkPosting("A", "Engineer"), mkPosting("B", "Scientist"), mkPosting("C", "Designer"))
	res := runAt(t, eng, run2Time,
		mkPosting("B", "Scientist"),
		mkPosting("C", "Senior Designer"),
		mkPosting("D", "Analyst"),
	)

	if res.Appeared != 1 || res.Updated != 1 || res.Unchanged != 1 || res.Closed != 1 {
		t.Fatalf("counts = %d/%d/%d/%d, want 1 of each", res.Appeared, res.Updated, res.Unchanged, res.Closed)
	}
	// Every posting lands in exactly one bucket.
	if sum := res.Appeared + res.Updated + res.Unchanged + res.Closed; sum != len(res.Registry) {
		t.Errorf("bucket sum = %d, registry = %d", sum, len(res.Registry))
	}

	wantOrder := []model.EventType{model.EventAppeared, model.EventUpdated, model.EventClosed}
	if len(res.Events) != len(wantOrder) {
		t.Fatalf("got %d events, want %d", len(res.Events), len(wantOrder))
	}
	for i, want := range wantOrder {
		if res.Events[i].Type != want {
			t.Errorf("event[%d] = %q, want %q", i, res.Events[i].Type, want)
		}
	}
}

func TestRunDeterministicEventOrder(t *testing.T) {
	postings := []model.Posting{
		mkPosting("C", "Designer"),
		mkPosting("A", "Engineer"),
		mkPosting("B", "Scientist"),
	}

	var first []string
	for i := 0; i < 5; i++ {
		res := runAt(t, testEngine(t), run1Time, postings...)
		var ids []string
		for _, ev := range res.Events {
			ids = append(ids, ev.JobID)
		}
		if i == 0 {
			first = ids
			for j := 1; j < len(ids); j++ {
				if ids[j-1] >= ids[j] {
					t.Fatalf("event ids not sorted: %v", ids)
				}
			}
			continue
		}
		for j := range ids {
			if ids[j] != first[j] {
				t.Fatalf("run %d event order %v differs from %v", i, ids, first)
			}
		}
	}
}

func TestRunDuplicateIDsLastWins(t *testing.T) {
	eng := testEngine(t)

	res := runAt(t, eng, run1Time, mkPosting("A", "First Title"), mkPosting("A", "Second Title"))

	if res.Appeared != 1 || len(res.Registry) != 1 {
		t.Fatalf("appeared = %d registry = %d, want 1/1", res.Appeared, len(res.Registry))
	}
	got := res.Registry[model.MakeJobID(model.SourceGreenhouse, "acme", "A")]
	if got.Title != "Second Title" {
		t.Errorf("title = %q, want the later posting to win", got.Title)
	}
}

func TestRunPersistFailureStillReturnsResult(t *testing.T) {
	// Pointing the registry at an existing directory makes the final
	// rename fail while everything before it succeeds.
	eng := NewEngine(t.TempDir(), discardLogger())
	eng.now = func() time.Time { return run1Time }

	res, err := eng.Run([]model.Posting{mkPosting("A", "Engineer")})
	if err == nil {
		t.Fatal("expected persist error")
	}
	var pe *model.PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *model.PersistError", err)
	}
	if res == nil || res.Appeared != 1 || len(res.Registry) != 1 {
		t.Fatalf("result = %+v, want usable in-memory state despite the error", res)
	}
}

func TestRunLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	eng := NewEngine(path, discardLogger())

	if err := os.WriteFile(path+".lock", []byte("999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := eng.Run([]model.Posting{mkPosting("A", "Engineer")})
	if err == nil || !strings.Contains(err.Error(), "held by another run") {
		t.Fatalf("error = %v, want lock contention", err)
	}
}

func TestRunStaleLockBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	eng := NewEngine(path, discardLogger())

	lockPath := path + ".lock"
	if err := os.WriteFile(lockPath, []byte("999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	res := runAt(t, eng, run1Time, mkPosting("A", "Engineer"))
	if res.Appeared != 1 {
		t.Fatalf("appeared = %d, want 1 after breaking the stale lock", res.Appeared)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lock file still present after run: %v", err)
	}
}
