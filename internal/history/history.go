package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Principles  []string  `json:"principles"`
	Snippets    int       `json:"snippets"`
	Invocations int       `json:"invocations"`
	Failures    int       `json:"failures"`
	Destination string    `json:"destination,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Store is a SQLite-backed log of runs.
type Store struct {
	db *sql.DB
}

// DefaultPath returns $XDG_DATA_HOME/dawn/history.db, falling back to
// ~/.local/share/dawn/history.db.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "dawn", "history.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "dawn", "history.db"), nil
}

// Open opens or creates the history database at path. An empty path uses
// DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  TEXT    NOT NULL,
			finished_at TEXT    NOT NULL,
			provider    TEXT    NOT NULL,
			model       TEXT    NOT NULL,
			principles  TEXT    NOT NULL,
			snippets    INTEGER NOT NULL,
			invocations INTEGER NOT NULL,
			failures    INTEGER NOT NULL DEFAULT 0,
			destination TEXT    NOT NULL DEFAULT '',
			status      TEXT    NOT NULL,
			error       TEXT    NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	return err
}

// Record stores r, replacing any run with the same ID.
func (s *Store) Record(ctx context.Context, r Run) error {
	principles, err := json.Marshal(r.Principles)
	if err != nil {
		return fmt.Errorf("history: encoding principles: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, provider, model, principles, snippets,
			 invocations, failures, destination, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Provider, r.Model, string(principles), r.Snippets,
		r.Invocations, r.Failures, r.Destination, r.Status, r.Error,
	)
	if err != nil {
		return fmt.Errorf("history: record run %s: %w", r.ID, err)
	}
	return nil
}

const selectRuns = `
	SELECT id, started_at, finished_at, provider, model, principles, snippets,
	       invocations, failures, destination, status, error
	FROM runs`

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
		principles        string
	)
	err := sc.Scan(&r.ID, &started, &finished, &r.Provider, &r.Model, &principles,
		&r.Snippets, &r.Invocations, &r.Failures, &r.Destination, &r.Status, &r.Error)
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("history: run %s: bad start time: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("history: run %s: bad finish time: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(principles), &r.Principles); err != nil {
		return Run{}, fmt.Errorf("history: run %s: bad principles: %w", r.ID, err)
	}
	return r, nil
}
