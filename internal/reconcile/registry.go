package reconcile

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Registry is the persisted world state: job id → posting, as of the
// last successful run.
type Registry map[string]model.Posting

// Active returns the non-closed postings.
func (r Registry) Active() []model.Posting {
	var out []model.Posting
	for _, id := range sortedKeys(r) {
		if p := r[id]; p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// All returns every posting, closed included, sorted by job id.
func (r Registry) All() []model.Posting {
	out := make([]model.Posting, 0, len(r))
	for _, id := range sortedKeys(r) {
		out = append(out, r[id])
	}
	return out
}

// LoadRegistry reads the registry file. A missing or unreadable file is
// first-run state: an empty registry, logged, never fatal.
func LoadRegistry(path string, logger *slog.Logger) Registry {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not read previous registry, starting empty", "path", path, "error", err)
		}
		return Registry{}
	}

	var postings []model.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		logger.Warn("could not parse previous registry, starting empty", "path", path, "error", err)
		return Registry{}
	}

	reg := make(Registry, len(postings))
	for _, p := range postings {
		reg[p.JobID] = p
	}
	logger.Info("loaded previous registry", "path", path, "postings", len(reg))
	return reg
}

// SaveRegistry overwrites the registry file wholesale: one JSON array
// sorted by job id, written to a temp file and renamed into place.
func SaveRegistry(path string, reg Registry) error {
	persistErr := func(err error) error {
		return &model.PersistError{Op: "write registry", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistErr(err)
	}

	data, err := json.MarshalIndent(reg.All(), "", "  ")
	if err != nil {
		return persistErr(err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return persistErr(err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return persistErr(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return persistErr(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return persistErr(err)
	}
	return nil
}

func sortedKeys(reg Registry) []string {
	keys := make([]string, 0, len(reg))
	for id := range reg {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
