package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status classifies a posting relative to the previous reconciliation run.
// Only the reconciliation engine assigns it; adapters leave it empty.
type Status string

const (
	StatusNew     Status = "new"
	StatusActive  Status = "active"
	StatusUpdated Status = "updated"
	StatusClosed  Status = "closed"
)

// Source identifies the job-board platform a posting came from.
type Source string

const (
	SourceGreenhouse Source = "greenhouse"
	SourceLever      Source = "lever"
	SourceAshby      Source = "ashby"
	SourceWorkday    Source = "workday"
)

// ParseSource maps a config string to a Source tag.
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case SourceGreenhouse, SourceLever, SourceAshby, SourceWorkday:
		return src, nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}

// MakeJobID builds the identity key for one listing. Every adapter uses
// this same formula, so reconciliation never needs per-source logic.
func MakeJobID(source Source, company, externalID string) string {
	return fmt.Sprintf("%s_%s_%s", source, company, externalID)
}

// Posting is the normalized representation of one job listing from one
// source. Adapters create these fresh every run; the reconciliation
// engine owns the temporal and status fields.
type Posting struct {
	JobID      string `json:"job_id"`
	Source     Source `json:"source"`
	Company    string `json:"company_name"`
	ExternalID string `json:"external_id"`

	Title           string   `json:"title"`
	Team            string   `json:"team,omitempty"`
	Location        string   `json:"location,omitempty"`
	EmploymentType  string   `json:"employment_type,omitempty"`
	Description     string   `json:"description,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`
	SalaryRange     string   `json:"salary_range,omitempty"`
	RemotePolicy    string   `json:"remote_policy,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`

	JobURL    string `json:"job_url,omitempty"`
	ApplyURL  string `json:"apply_url,omitempty"`
	SourceURL string `json:"source_url,omitempty"`

	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"` // set only on a detected content change
	Status    Status     `json:"status"`

	// Raw source payload kept for diagnostics; never compared for
	// change detection.
	RawData json.RawMessage `json:"raw_data,omitempty"`
}

// Active reports whether the posting is still listed on its board.
func (p Posting) Active() bool {
	return p.Status != StatusClosed
}

// EventType names one kind of detected change.
type EventType string

const (
	EventAppeared EventType = "appeared"
	EventUpdated  EventType = "updated"
	EventClosed   EventType = "closed"
)

// Event records one detected change for one job in one run. Events are
// append-only output and are never read back in later runs.
type Event struct {
	Type         EventType `json:"event_type"`
	JobID        string    `json:"job_id"`
	Timestamp    time.Time `json:"timestamp"`
	PreviousData *Posting  `json:"previous_data,omitempty"`
	NewData      *Posting  `json:"new_data,omitempty"`
}

// Adapter acquires the current postings from one company's job board.
type Adapter interface {
	Acquire(ctx context.Context) ([]Posting, error)
	Company() string
	Source() Source
}
