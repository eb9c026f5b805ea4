package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/fetch"
	"github.com/ReedRawlings/AIJobs/internal/model"
)

const ashbyAPIBase = "https://api.ashbyhq.com/posting-api/job-board"

var ashbyURLRegex = regexp.MustCompile(`jobs\.ashbyhq\.com/([^/?#]+)`)

// ashbyJob represents a single job in the Ashby job board response.
type ashbyJob struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Department       string            `json:"department"`
	Team             string            `json:"team"`
	EmploymentType   string            `json:"employmentType"`
	Location         string            `json:"location"`
	IsListed         bool              `json:"isListed"`
	IsRemote         bool              `json:"isRemote"`
	DescriptionPlain string            `json:"descriptionPlain"`
	JobURL           string            `json:"jobUrl"`
	ApplyURL         string            `json:"applyUrl"`
	PublishedAt      string            `json:"publishedAt"`
	Compensation     ashbyCompensation `json:"compensation"`
}

type ashbyCompensation struct {
	SalarySummary string `json:"scrapeableCompensationSalarySummary"`
}

// ashbyResponse is the top-level job board response, items kept raw.
type ashbyResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// AshbyAdapter acquires postings from the Ashby public job board API.
type AshbyAdapter struct {
	org         string // org slug from the URL
	company     string
	displayName string
	boardURL    string
	client      *fetch.Client
	logger      *slog.Logger
}

// NewAshbyAdapter derives the org slug from the configured URL
// (jobs.ashbyhq.com/<org>) and fails on any other shape.
func NewAshbyAdapter(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (*AshbyAdapter, error) {
	m := ashbyURLRegex.FindStringSubmatch(boardURL)
	if m == nil {
		return nil, fmt.Errorf("invalid ashby board URL %q", boardURL)
	}
	return &AshbyAdapter{
		org:         m[1],
		company:     company,
		displayName: displayName,
		boardURL:    boardURL,
		client:      client,
		logger:      logger,
	}, nil
}

func (a *AshbyAdapter) Company() string      { return a.company }
func (a *AshbyAdapter) Source() model.Source { return model.SourceAshby }

// Acquire fetches the org's job board and maps each listed job to a
// Posting. Unlisted jobs and items missing an id or title are skipped.
func (a *AshbyAdapter) Acquire(ctx context.Context) ([]model.Posting, error) {
	url := fmt.Sprintf("%s/%s", ashbyAPIBase, a.org)

	var resp ashbyResponse
	if err := a.client.GetJSON(ctx, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("ashby list for %s: %w", a.org, err)
	}

	now := time.Now().UTC()
	postings := make([]model.Posting, 0, len(resp.Jobs))
	for _, raw := range resp.Jobs {
		var aj ashbyJob
		if err := json.Unmarshal(raw, &aj); err != nil {
			a.logger.Debug("skipping unparseable ashby item", "company", a.company, "error", err)
			continue
		}
		if !aj.IsListed {
			continue
		}
		p, ok := a.parseJob(aj, raw, now)
		if !ok {
			continue
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func (a *AshbyAdapter) parseJob(aj ashbyJob, raw json.RawMessage, now time.Time) (model.Posting, bool) {
	externalID := strings.TrimSpace(aj.ID)
	title := strings.TrimSpace(aj.Title)
	if externalID == "" || title == "" {
		a.logger.Debug("skipping ashby item without id or title", "company", a.company)
		return model.Posting{}, false
	}

	team := firstNonEmpty(aj.Team, aj.Department)
	jobURL := firstNonEmpty(aj.JobURL,
		fmt.Sprintf("%s/%s", strings.TrimRight(a.boardURL, "/"), externalID))

	var remote string
	if aj.IsRemote {
		remote = "remote"
	}

	p := model.Posting{
		JobID:          model.MakeJobID(model.SourceAshby, a.company, externalID),
		Source:         model.SourceAshby,
		Company:        a.displayName,
		ExternalID:     externalID,
		Title:          title,
		Team:           strings.TrimSpace(team),
		Location:       strings.TrimSpace(aj.Location),
		EmploymentType: strings.TrimSpace(aj.EmploymentType),
		Description:    strings.TrimSpace(aj.DescriptionPlain),
		SalaryRange:    strings.TrimSpace(aj.Compensation.SalarySummary),
		RemotePolicy:   remote,
		JobURL:         jobURL,
		ApplyURL:       aj.ApplyURL,
		SourceURL:      a.boardURL,
		FirstSeen:      now,
		LastSeen:       now,
		RawData:        raw,
	}
	return p, true
}
