package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/fetch"
	"github.com/ReedRawlings/AIJobs/internal/model"
)

const workdayPageSize = 50

var workdayURLRegex = regexp.MustCompile(`^https?://([a-z0-9-]+)\.(wd\d+)\.myworkdayjobs\.com/(?:[a-zA-Z]{2}-[a-zA-Z]{2}/)?([^/?#]+)`)

// workdayListRequest is the POST body for the jobs listing endpoint.
type workdayListRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

// workdayListResponse is one page of the jobs listing, items kept raw.
type workdayListResponse struct {
	Total       int               `json:"total"`
	JobPostings []json.RawMessage `json:"jobPostings"`
}

type workdayListing struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	TimeType      string   `json:"timeType"`
	BulletFields  []string `json:"bulletFields"`
}

// WorkdayAdapter acquires postings from a Workday career site through
// the cxs listing endpoint, paginating offset windows until the
// reported total is reached.
type WorkdayAdapter struct {
	apiURL      string // <host>/wday/cxs/<tenant>/<site>/jobs
	company     string
	displayName string
	boardURL    string
	client      *fetch.Client
	logger      *slog.Logger
}

// NewWorkdayAdapter derives tenant and site from the configured URL
// (<tenant>.wdN.myworkdayjobs.com/<site>) and fails on any other shape.
func NewWorkdayAdapter(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (*WorkdayAdapter, error) {
	m := workdayURLRegex.FindStringSubmatch(boardURL)
	if m == nil {
		return nil, fmt.Errorf("invalid workday board URL %q", boardURL)
	}
	tenant, instance, site := m[1], m[2], m[3]
	apiURL := fmt.Sprintf("https://%s.%s.myworkdayjobs.com/wday/cxs/%s/%s/jobs", tenant, instance, tenant, site)
	return &WorkdayAdapter{
		apiURL:      apiURL,
		company:     company,
		displayName: displayName,
		boardURL:    strings.TrimRight(boardURL, "/"),
		client:      client,
		logger:      logger,
	}, nil
}

func (a *WorkdayAdapter) Company() string      { return a.company }
func (a *WorkdayAdapter) Source() model.Source { return model.SourceWorkday }

// Acquire pages through the listing endpoint and maps each item to a
// Posting. Items missing an id or title are skipped.
func (a *WorkdayAdapter) Acquire(ctx context.Context) ([]model.Posting, error) {
	now := time.Now().UTC()

	var postings []model.Posting
	offset := 0
	for {
		body := workdayListRequest{
			AppliedFacets: map[string]any{},
			Limit:         workdayPageSize,
			Offset:        offset,
			SearchText:    "",
		}
		var page workdayListResponse
		if err := a.client.PostJSON(ctx, a.apiURL, body, &page); err != nil {
			return nil, fmt.Errorf("workday list for %s: %w", a.company, err)
		}

		for _, raw := range page.JobPostings {
			var wl workdayListing
			if err := json.Unmarshal(raw, &wl); err != nil {
				a.logger.Debug("skipping unparseable workday item", "company", a.company, "error", err)
				continue
			}
			p, ok := a.parseListing(wl, raw, now)
			if !ok {
				continue
			}
			postings = append(postings, p)
		}

		if len(page.JobPostings) == 0 {
			break
		}
		offset += workdayPageSize
		if offset >= page.Total {
			break
		}
	}
	return postings, nil
}

func (a *WorkdayAdapter) parseListing(wl workdayListing, raw json.RawMessage, now time.Time) (model.Posting, bool) {
	// The listing has no id field. The first bullet field is the
	// requisition id when present; the externalPath slug changes when a
	// title is edited, so it is only the fallback.
	var externalID string
	if len(wl.BulletFields) > 0 {
		externalID = strings.TrimSpace(wl.BulletFields[0])
	}
	if externalID == "" && wl.ExternalPath != "" {
		externalID = path.Base(wl.ExternalPath)
	}
	title := strings.TrimSpace(wl.Title)
	if externalID == "" || title == "" {
		a.logger.Debug("skipping workday item without id or title", "company", a.company)
		return model.Posting{}, false
	}

	p := model.Posting{
		JobID:          model.MakeJobID(model.SourceWorkday, a.company, externalID),
		Source:         model.SourceWorkday,
		Company:        a.displayName,
		ExternalID:     externalID,
		Title:          title,
		Location:       strings.TrimSpace(wl.LocationsText),
		EmploymentType: strings.TrimSpace(wl.TimeType),
		JobURL:         a.boardURL + wl.ExternalPath,
		SourceURL:      a.boardURL,
		FirstSeen:      now,
		LastSeen:       now,
		RawData:        raw,
	}
	return p, true
}
