package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/fetch"
	"github.com/ReedRawlings/AIJobs/internal/model"
)

const greenhouseAPIBase = "https://boards-api.greenhouse.io/v1/boards"

var greenhouseURLRegex = regexp.MustCompile(`boards\.greenhouse\.io/([^/?#]+)`)

// greenhouseJob represents a single job in the Greenhouse list response.
type greenhouseJob struct {
	ID          int64                  `json:"id"`
	Title       string                 `json:"title"`
	Location    greenhouseLocation     `json:"location"`
	AbsoluteURL string                 `json:"absolute_url"`
	UpdatedAt   string                 `json:"updated_at"`
	Departments []greenhouseDepartment `json:"departments"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseDepartment struct {
	Name string `json:"name"`
}

// greenhouseListResponse is the top-level jobs API response. Items stay
// raw so each posting can carry its original payload.
type greenhouseListResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// greenhouseDetail is the per-job detail response.
type greenhouseDetail struct {
	ID             int64                 `json:"id"`
	Content        string                `json:"content"`
	Questions      []greenhouseQuestion  `json:"questions"`
	PayInputRanges []greenhousePayRange  `json:"pay_input_ranges"`
	Metadata       []greenhouseMetadatum `json:"metadata"`
}

type greenhouseQuestion struct {
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type greenhousePayRange struct {
	MinCents     int64  `json:"min_cents"`
	MaxCents     int64  `json:"max_cents"`
	CurrencyType string `json:"currency_type"`
	Title        string `json:"title"`
}

type greenhouseMetadatum struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// GreenhouseAdapter acquires postings from the Greenhouse public boards
// API: one list call, then one detail call per item for the description
// and requirements.
type GreenhouseAdapter struct {
	board       string // board token from the URL
	company     string // config name, job id component
	displayName string
	boardURL    string
	client      *fetch.Client
	logger      *slog.Logger
}

// NewGreenhouseAdapter derives the board token from the configured URL
// (boards.greenhouse.io/<board>) and fails on any other shape.
func NewGreenhouseAdapter(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (*GreenhouseAdapter, error) {
	m := greenhouseURLRegex.FindStringSubmatch(boardURL)
	if m == nil {
		return nil, fmt.Errorf("invalid greenhouse board URL %q", boardURL)
	}
	return &GreenhouseAdapter{
		board:       m[1],
		company:     company,
		displayName: displayName,
		boardURL:    boardURL,
		client:      client,
		logger:      logger,
	}, nil
}

func (a *GreenhouseAdapter) Company() string      { return a.company }
func (a *GreenhouseAdapter) Source() model.Source { return model.SourceGreenhouse }

// Acquire fetches the board's job list and maps each item to a Posting.
// Items missing an id or title are skipped, as are items whose detail
// call fails; only a list-level failure aborts the batch.
func (a *GreenhouseAdapter) Acquire(ctx context.Context) ([]model.Posting, error) {
	listURL := fmt.Sprintf("%s/%s/jobs", greenhouseAPIBase, a.board)

	var listResp greenhouseListResponse
	if err := a.client.GetJSON(ctx, listURL, nil, &listResp); err != nil {
		return nil, fmt.Errorf("greenhouse list for %s: %w", a.board, err)
	}

	now := time.Now().UTC()
	postings := make([]model.Posting, 0, len(listResp.Jobs))
	for _, raw := range listResp.Jobs {
		var gj greenhouseJob
		if err := json.Unmarshal(raw, &gj); err != nil {
			a.logger.Debug("skipping unparseable greenhouse item", "company", a.company, "error", err)
			continue
		}
		p, ok := a.parseJob(ctx, gj, raw, now)
		if !ok {
			continue
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func (a *GreenhouseAdapter) parseJob(ctx context.Context, gj greenhouseJob, raw json.RawMessage, now time.Time) (model.Posting, bool) {
	var externalID string
	if gj.ID != 0 {
		externalID = strconv.FormatInt(gj.ID, 10)
	}
	title := strings.TrimSpace(gj.Title)
	if externalID == "" || title == "" {
		a.logger.Debug("skipping greenhouse item without id or title", "company", a.company)
		return model.Posting{}, false
	}

	p := model.Posting{
		JobID:      model.MakeJobID(model.SourceGreenhouse, a.company, externalID),
		Source:     model.SourceGreenhouse,
		Company:    a.displayName,
		ExternalID: externalID,
		Title:      title,
		Location:   strings.TrimSpace(gj.Location.Name),
		JobURL:     gj.AbsoluteURL,
		SourceURL:  a.boardURL,
		FirstSeen:  now,
		LastSeen:   now,
		RawData:    raw,
	}
	if len(gj.Departments) > 0 {
		p.Team = strings.TrimSpace(gj.Departments[0].Name)
	}

	detail, err := a.fetchDetail(ctx, externalID)
	if err != nil {
		a.logger.Warn("skipping greenhouse item, detail fetch failed",
			"company", a.company, "external_id", externalID, "error", err)
		return model.Posting{}, false
	}
	p.Description = extractText(detail.Content)
	for _, q := range detail.Questions {
		if q.Required {
			p.Requirements = append(p.Requirements, q.Label)
		}
	}
	if len(detail.PayInputRanges) > 0 {
		p.SalaryRange = formatPayRange(detail.PayInputRanges[0])
	}
	return p, true
}

func (a *GreenhouseAdapter) fetchDetail(ctx context.Context, externalID string) (*greenhouseDetail, error) {
	url := fmt.Sprintf("%s/%s/jobs/%s", greenhouseAPIBase, a.board, externalID)
	var detail greenhouseDetail
	if err := a.client.GetJSON(ctx, url, nil, &detail); err != nil {
		return nil, fmt.Errorf("greenhouse detail for %s: %w", a.board, err)
	}
	return &detail, nil
}

func formatPayRange(r greenhousePayRange) string {
	s := fmt.Sprintf("%d-%d %s", r.MinCents/100, r.MaxCents/100, r.CurrencyType)
	if r.Title != "" {
		s = s + " (" + r.Title + ")"
	}
	return s
}
