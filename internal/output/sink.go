package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/model"
	"github.com/ReedRawlings/AIJobs/internal/reconcile"
)

// Sink writes the per-run artifacts under one output directory:
//
//	registry/current_jobs.csv   active postings, overwritten every run
//	snapshots/<date>.csv        every posting from the run, closed included
//	events/<date>.csv           the run's change events
type Sink struct {
	baseDir string
	logger  *slog.Logger
}

func NewSink(baseDir string, logger *slog.Logger) *Sink {
	return &Sink{baseDir: baseDir, logger: logger}
}

// WriteAll writes all three artifacts for one run. The artifacts are
// independent: a failure writing one does not stop the others, and
// every failure is reported in the joined error.
func (s *Sink) WriteAll(reg reconcile.Registry, events []model.Event, day time.Time) error {
	var errs []error

	if err := s.writeRegistry(reg); err != nil {
		s.logger.Error("registry export failed", "error", err)
		errs = append(errs, err)
	}
	if err := s.writeSnapshot(reg, day); err != nil {
		s.logger.Error("snapshot export failed", "error", err)
		errs = append(errs, err)
	}
	if err := s.writeEvents(events, day); err != nil {
		s.logger.Error("event log export failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Sink) writeRegistry(reg reconcile.Registry) error {
	active := reg.Active()
	if len(active) == 0 {
		s.logger.Debug("no active postings, skipping registry export")
		return nil
	}
	path := filepath.Join(s.baseDir, "registry", "current_jobs.csv")
	if err := writePostingsCSV(path, active); err != nil {
		return err
	}
	s.logger.Info("wrote registry export", "path", path, "postings", len(active))
	return nil
}

func (s *Sink) writeSnapshot(reg reconcile.Registry, day time.Time) error {
	all := reg.All()
	if len(all) == 0 {
		s.logger.Debug("empty registry, skipping snapshot")
		return nil
	}
	path := filepath.Join(s.baseDir, "snapshots", day.Format("2006-01-02")+".csv")
	if err := writePostingsCSV(path, all); err != nil {
		return err
	}
	s.logger.Info("wrote snapshot", "path", path, "postings", len(all))
	return nil
}

func (s *Sink) writeEvents(events []model.Event, day time.Time) error {
	if len(events) == 0 {
		s.logger.Debug("no events, skipping event log")
		return nil
	}
	path := filepath.Join(s.baseDir, "events", day.Format("2006-01-02")+".csv")

	persistErr := func(err error) error {
		return &model.PersistError{Op: "write event log", Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistErr(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return persistErr(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"event_type", "job_id", "timestamp", "previous_data", "new_data"}); err != nil {
		return persistErr(err)
	}
	for _, ev := range events {
		prev, err := encodePosting(ev.PreviousData)
		if err != nil {
			return persistErr(err)
		}
		next, err := encodePosting(ev.NewData)
		if err != nil {
			return persistErr(err)
		}
		row := []string{string(ev.Type), ev.JobID, ev.Timestamp.Format(time.RFC3339), prev, next}
		if err := w.Write(row); err != nil {
			return persistErr(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return persistErr(err)
	}
	s.logger.Info("wrote event log", "path", path, "events", len(events))
	return nil
}

func encodePosting(p *model.Posting) (string, error) {
	if p == nil {
		return "", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writePostingsCSV writes one posting per row. The column set is the
// sorted union of fields populated anywhere in the slice, so sparse
// fields like salary only appear when a source supplies them.
func writePostingsCSV(path string, postings []model.Posting) error {
	persistErr := func(err error) error {
		return &model.PersistError{Op: "write postings csv", Path: path, Err: err}
	}

	rows := make([]map[string]string, len(postings))
	colSet := make(map[string]bool)
	for i, p := range postings {
		rows[i] = postingRow(p)
		for col := range rows[i] {
			colSet[col] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistErr(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return persistErr(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return persistErr(err)
	}
	for _, row := range rows {
		record := make([]string, len(cols))
		for i, col := range cols {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return persistErr(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return persistErr(err)
	}
	return nil
}

// postingRow flattens a posting into csv cells, leaving out anything
// unset. Slices and raw payloads stay JSON so the cell round-trips.
func postingRow(p model.Posting) map[string]string {
	row := make(map[string]string)
	set := func(col, val string) {
		if val != "" {
			row[col] = val
		}
	}

	set("job_id", p.JobID)
	set("source", string(p.Source))
	set("company_name", p.Company)
	set("external_id", p.ExternalID)
	set("title", p.Title)
	set("team", p.Team)
	set("location", p.Location)
	set("employment_type", p.EmploymentType)
	set("description", p.Description)
	set("job_url", p.JobURL)
	set("apply_url", p.ApplyURL)
	set("source_url", p.SourceURL)
	set("status", string(p.Status))
	set("salary_range", p.SalaryRange)
	set("remote_policy", p.RemotePolicy)
	set("experience_level", p.ExperienceLevel)

	if len(p.Requirements) > 0 {
		if data, err := json.Marshal(p.Requirements); err == nil {
			row["requirements"] = string(data)
		}
	}
	if len(p.RawData) > 0 {
		row["raw_data"] = string(p.RawData)
	}
	if !p.FirstSeen.IsZero() {
		row["first_seen"] = p.FirstSeen.Format(time.RFC3339)
	}
	if !p.LastSeen.IsZero() {
		row["last_seen"] = p.LastSeen.Format(time.RFC3339)
	}
	if p.UpdatedAt != nil {
		row["updated_at"] = p.UpdatedAt.Format(time.RFC3339)
	}
	return row
}
