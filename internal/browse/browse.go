// Package browse is the interactive registry viewer: a company picker
// in front of a split list/detail terminal UI. It reads the persisted
// registry file and nothing else; no network, no writes.
package browse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Run opens the browser over the registry at registryPath and returns
// once the user quits.
func Run(registryPath string) error {
	postings, err := loadPostings(registryPath)
	if err != nil {
		return err
	}
	if len(postings) == 0 {
		return fmt.Errorf("registry %s is empty, run a poll first", registryPath)
	}

	groups := groupCompanies(postings)

	for {
		choice, err := runPicker(groups)
		if err != nil {
			return err
		}
		if choice < 0 {
			return nil
		}

		wantQuit, err := runBrowser(groups[choice])
		if err != nil {
			return err
		}
		if wantQuit {
			return nil
		}
	}
}

// loadPostings reads the registry file directly. Unlike the
// reconciliation loader a missing or corrupt file is an error here:
// there is nothing to browse.
func loadPostings(path string) ([]model.Posting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no registry at %s, run a poll first", path)
		}
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var postings []model.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return postings, nil
}

// companyGroup is one picker entry: a company plus its postings. The
// first group is always the synthetic "All companies" view.
type companyGroup struct {
	Name     string
	Postings []model.Posting
	Open     int
}

func groupCompanies(postings []model.Posting) []companyGroup {
	byName := make(map[string][]model.Posting)
	for _, p := range postings {
		byName[p.Company] = append(byName[p.Company], p)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]companyGroup, 0, len(names)+1)
	groups = append(groups, companyGroup{
		Name:     "All companies",
		Postings: postings,
		Open:     countOpen(postings),
	})
	for _, name := range names {
		groups = append(groups, companyGroup{
			Name:     name,
			Postings: byName[name],
			Open:     countOpen(byName[name]),
		})
	}
	return groups
}

func countOpen(postings []model.Posting) int {
	n := 0
	for _, p := range postings {
		if p.Active() {
			n++
		}
	}
	return n
}
