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

const leverAPIBase = "https://api.lever.co/v0/postings"

var leverURLRegex = regexp.MustCompile(`jobs\.lever\.co/([^/?#]+)`)

// leverCategories represents the categories object in a Lever posting.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single posting in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	WorkplaceType    string          `json:"workplaceType"`
	HostedURL        string          `json:"hostedUrl"`
	ApplyURL         string          `json:"applyUrl"`
}

// LeverAdapter acquires postings from the Lever public postings API.
// One list call carries everything, no per-item detail fetch.
type LeverAdapter struct {
	site        string // site id from the URL
	company     string
	displayName string
	boardURL    string
	client      *fetch.Client
	logger      *slog.Logger
}

// NewLeverAdapter derives the site id from the configured URL
// (jobs.lever.co/<site>) and fails on any other shape.
func NewLeverAdapter(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (*LeverAdapter, error) {
	m := leverURLRegex.FindStringSubmatch(boardURL)
	if m == nil {
		return nil, fmt.Errorf("invalid lever board URL %q", boardURL)
	}
	return &LeverAdapter{
		site:        m[1],
		company:     company,
		displayName: displayName,
		boardURL:    boardURL,
		client:      client,
		logger:      logger,
	}, nil
}

func (a *LeverAdapter) Company() string      { return a.company }
func (a *LeverAdapter) Source() model.Source { return model.SourceLever }

// Acquire fetches all postings for the site and maps them to Postings.
// Items missing an id or title are skipped.
func (a *LeverAdapter) Acquire(ctx context.Context) ([]model.Posting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverAPIBase, a.site)

	var rawJobs []json.RawMessage
	if err := a.client.GetJSON(ctx, url, nil, &rawJobs); err != nil {
		return nil, fmt.Errorf("lever list for %s: %w", a.site, err)
	}

	now := time.Now().UTC()
	postings := make([]model.Posting, 0, len(rawJobs))
	for _, raw := range rawJobs {
		var lj leverJob
		if err := json.Unmarshal(raw, &lj); err != nil {
			a.logger.Debug("skipping unparseable lever item", "company", a.company, "error", err)
			continue
		}
		p, ok := a.parseJob(lj, raw, now)
		if !ok {
			continue
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func (a *LeverAdapter) parseJob(lj leverJob, raw json.RawMessage, now time.Time) (model.Posting, bool) {
	externalID := strings.TrimSpace(lj.ID)
	title := strings.TrimSpace(lj.Text)
	if externalID == "" || title == "" {
		a.logger.Debug("skipping lever item without id or title", "company", a.company)
		return model.Posting{}, false
	}

	// Prefer allLocations when present, fall back to the single location.
	location := lj.Categories.Location
	if len(lj.Categories.AllLocations) > 0 {
		location = strings.Join(lj.Categories.AllLocations, ", ")
	}

	team := firstNonEmpty(lj.Categories.Team, lj.Categories.Department)
	description := firstNonEmpty(lj.DescriptionPlain, extractText(lj.Description))

	jobURL := firstNonEmpty(lj.HostedURL,
		fmt.Sprintf("%s/%s", strings.TrimRight(a.boardURL, "/"), externalID))
	applyURL := firstNonEmpty(lj.ApplyURL, jobURL)

	p := model.Posting{
		JobID:          model.MakeJobID(model.SourceLever, a.company, externalID),
		Source:         model.SourceLever,
		Company:        a.displayName,
		ExternalID:     externalID,
		Title:          title,
		Team:           strings.TrimSpace(team),
		Location:       strings.TrimSpace(location),
		EmploymentType: strings.TrimSpace(lj.Categories.Commitment),
		Description:    strings.TrimSpace(description),
		RemotePolicy:   strings.TrimSpace(lj.WorkplaceType),
		JobURL:         jobURL,
		ApplyURL:       applyURL,
		SourceURL:      a.boardURL,
		FirstSeen:      now,
		LastSeen:       now,
		RawData:        raw,
	}
	return p, true
}
