package browse

import (
	"strings"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Filter narrows the posting list shown in the browser. Both parts are
// optional: an empty status matches every status and an empty query
// matches every title. Query matching is case-insensitive substring.
type Filter struct {
	Status model.Status
	Query  string
}

// Match returns true if the posting passes both the status and the
// title query.
func (f Filter) Match(p model.Posting) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

func apply(postings []model.Posting, f Filter) []model.Posting {
	out := make([]model.Posting, 0, len(postings))
	for _, p := range postings {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// statusFilter is the cycling status view: all, then each concrete
// status in lifecycle order.
type statusFilter int

const (
	filterAll statusFilter = iota
	filterActive
	filterNew
	filterUpdated
	filterClosed
	filterCount
)

func (s statusFilter) next() statusFilter {
	return (s + 1) % filterCount
}

func (s statusFilter) status() model.Status {
	switch s {
	case filterActive:
		return model.StatusActive
	case filterNew:
		return model.StatusNew
	case filterUpdated:
		return model.StatusUpdated
	case filterClosed:
		return model.StatusClosed
	}
	return ""
}

func (s statusFilter) label() string {
	if st := s.status(); st != "" {
		return string(st)
	}
	return "all"
}
