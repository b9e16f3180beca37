// Package history records executed metric queries in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapmetrics/pkg/core"

	// sqlite driver.
	_ "modernc.org/sqlite"
)

// ErrNotOpen is returned when the store has no open database.
var ErrNotOpen = errors.New("database not opened")

// Entry is one recorded query run.
type Entry struct {
	ID         string              `json:"id"`
	Model      string              `json:"model"`
	Database   string              `json:"database,omitempty"`
	Request    core.CompileRequest `json:"request"`
	SQL        string              `json:"sql,omitempty"`
	RowCount   int                 `json:"row_count"`
	DurationMS int64               `json:"duration_ms"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Failed reports whether the run ended in an error.
func (e *Entry) Failed() bool { return e.Error != "" }

// Store persists query runs.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path and runs
// pending migrations. Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection to :memory: is a fresh database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores e, assigning its ID and CreatedAt when empty.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Model == "" {
		e.Model = e.Request.ModelName
	}

	req, err := json.Marshal(e.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	var errMsg *string
	if e.Error != "" {
		errMsg = &e.Error
	}

	s.logger.Debug("recording query run", slog.String("id", e.ID), slog.String("model", e.Model))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_runs (id, model, database_id, request, sql_text, row_count, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Model, e.Database, string(req), e.SQL, e.RowCount, e.DurationMS, errMsg, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record query run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query run not found: %s", id)
	}
	return e, err
}

// ListOptions filters List.
type ListOptions struct {
	Model string
	Limit int
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := selectColumns
	args := []any{}
	if opts.Model != "" {
		query += ` WHERE model = ?`
		args = append(args, opts.Model)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const selectColumns = `SELECT id, model, database_id, request, sql_text, row_count, duration_ms, error, created_at FROM query_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e       Entry
		req     string
		errMsg  sql.NullString
		created time.Time
	)
	if err := sc.Scan(&e.ID, &e.Model, &e.Database, &req, &e.SQL, &e.RowCount, &e.DurationMS, &errMsg, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan query run: %w", err)
	}
	if err := json.Unmarshal([]byte(req), &e.Request); err != nil {
		return nil, fmt.Errorf("query run %s: invalid request: %w", e.ID, err)
	}
	e.Error = errMsg.String
	e.CreatedAt = created.UTC()
	return &e, nil
}
