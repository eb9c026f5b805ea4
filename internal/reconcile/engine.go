package reconcile

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// ErrBusy is returned when a reconciliation is already running in this
// process.
var ErrBusy = errors.New("reconciliation already in progress")

// Engine reconciles a freshly acquired snapshot against the persisted
// registry and emits one event per lifecycle change.
type Engine struct {
	registryPath   string
	lockStaleAfter time.Duration
	logger         *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewEngine(registryPath string, logger *slog.Logger) *Engine {
	return &Engine{
		registryPath:   registryPath,
		lockStaleAfter: time.Hour,
		logger:         logger,
		now:            time.Now,
	}
}

// Result is the outcome of one reconciliation run.
type Result struct {
	Registry  Registry
	Events    []model.Event
	Appeared  int
	Updated   int
	Unchanged int
	Closed    int
}

// Run classifies the snapshot against the previous registry, stamps
// lifecycle fields, and persists the new registry wholesale. Closed
// postings are carried forward so their history survives. On a persist
// failure the Result is still returned alongside the error so callers
// can write the remaining artifacts.
func (e *Engine) Run(postings []model.Posting) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()

	lock, err := acquireLock(e.registryPath+".lock", e.lockStaleAfter, e.logger)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	previous := LoadRegistry(e.registryPath, e.logger)

	// Closed records live exactly one generation in the registry. They
	// are dropped from the previous state here, so a job that reappears
	// after closing starts a fresh lifecycle with an appeared event
	// instead of silently resuming the old one.
	for id, p := range previous {
		if !p.Active() {
			delete(previous, id)
		}
	}

	now := e.now().UTC()

	current := make(Registry, len(postings))
	for _, p := range postings {
		if _, dup := current[p.JobID]; dup {
			e.logger.Warn("duplicate job id in snapshot, keeping last", "job_id", p.JobID, "company", p.Company)
		}
		current[p.JobID] = p
	}

	newIDs, commonIDs, closedIDs := partition(current, previous)
	result := &Result{}

	for _, id := range newIDs {
		p := current[id]
		p.Status = model.StatusNew
		p.FirstSeen = now
		p.LastSeen = now
		current[id] = p
		result.Events = append(result.Events, model.Event{
			Type:      model.EventAppeared,
			JobID:     id,
			Timestamp: now,
			NewData:   &p,
		})
		result.Appeared++
	}

	for _, id := range commonIDs {
		prev := previous[id]
		cur := current[id]
		cur.FirstSeen = prev.FirstSeen
		cur.LastSeen = now
		if postingsDiffer(cur, prev) {
			cur.Status = model.StatusUpdated
			ts := now
			cur.UpdatedAt = &ts
			current[id] = cur
			prevCopy := prev
			curCopy := cur
			result.Events = append(result.Events, model.Event{
				Type:         model.EventUpdated,
				JobID:        id,
				Timestamp:    now,
				PreviousData: &prevCopy,
				NewData:      &curCopy,
			})
			result.Updated++
		} else {
			cur.Status = model.StatusActive
			cur.UpdatedAt = prev.UpdatedAt
			current[id] = cur
			result.Unchanged++
		}
	}

	for _, id := range closedIDs {
		prev := previous[id]
		closed := prev
		closed.Status = model.StatusClosed
		current[id] = closed
		prevCopy := prev
		result.Events = append(result.Events, model.Event{
			Type:         model.EventClosed,
			JobID:        id,
			Timestamp:    now,
			PreviousData: &prevCopy,
		})
		result.Closed++
	}

	e.logger.Info("reconciliation complete",
		"appeared", result.Appeared,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"closed", result.Closed,
		"registry", len(current))

	result.Registry = current
	if err := SaveRegistry(e.registryPath, current); err != nil {
		return result, err
	}
	return result, nil
}

// partition splits the two registries into new, common and closed job
// ids, each sorted so runs over the same data produce identical output.
func partition(current, previous Registry) (newIDs, commonIDs, closedIDs []string) {
	for id := range current {
		if _, ok := previous[id]; ok {
			commonIDs = append(commonIDs, id)
		} else {
			newIDs = append(newIDs, id)
		}
	}
	for id := range previous {
		if _, ok := current[id]; !ok {
			closedIDs = append(closedIDs, id)
		}
	}
	sort.Strings(newIDs)
	sort.Strings(commonIDs)
	sort.Strings(closedIDs)
	return newIDs, commonIDs, closedIDs
}

// postingsDiffer reports whether the descriptive content changed.
// Volatile fields like raw payloads, urls and timestamps are ignored so
// boards that rewrite them on every request do not flood the event log.
func postingsDiffer(a, b model.Posting) bool {
	return a.Title != b.Title ||
		a.Team != b.Team ||
		a.Location != b.Location ||
		a.EmploymentType != b.EmploymentType ||
		a.Description != b.Description
}
