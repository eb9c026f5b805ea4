package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Store keeps an operational ledger of pipeline runs in a SQLite
// database: one row per invocation, successes and failures alike.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the ledger database at dbPath and ensures the
// runs table exists.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging ledger db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status      TEXT NOT NULL,
		companies   INTEGER NOT NULL,
		postings    INTEGER NOT NULL,
		appeared    INTEGER NOT NULL,
		updated     INTEGER NOT NULL,
		closed      INTEGER NOT NULL,
		failures    TEXT,
		error       TEXT
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts one run summary into the ledger.
func (s *Store) Record(ctx context.Context, sum model.RunSummary) error {
	failures, err := json.Marshal(sum.Failures)
	if err != nil {
		return fmt.Errorf("encoding failures for run %s: %w", sum.RunID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, status, companies, postings,
			appeared, updated, closed, failures, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(sum.Status),
		sum.Companies,
		sum.Postings,
		sum.Appeared,
		sum.Updated,
		sum.Closed,
		string(failures),
		sum.Err,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", sum.RunID, err)
	}
	return nil
}

// Recent returns the latest n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, companies, postings,
			appeared, updated, closed, failures, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var (
			sum               model.RunSummary
			started, finished string
			status, failures  string
		)
		if err := rows.Scan(&sum.RunID, &started, &finished, &status, &sum.Companies,
			&sum.Postings, &sum.Appeared, &sum.Updated, &sum.Closed, &failures, &sum.Err); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if sum.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing started_at for run %s: %w", sum.RunID, err)
		}
		if sum.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at for run %s: %w", sum.RunID, err)
		}
		sum.Status = model.RunStatus(status)
		if failures != "" {
			if err := json.Unmarshal([]byte(failures), &sum.Failures); err != nil {
				return nil, fmt.Errorf("decoding failures for run %s: %w", sum.RunID, err)
			}
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
