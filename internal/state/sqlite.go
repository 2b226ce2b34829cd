package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// ErrNotFound is returned when no build has the requested ID.
var ErrNotFound = errors.New("build not found")

// Record is one row of build history.
type Record struct {
	ID               string
	StartedAt        time.Time
	Duration         time.Duration
	Outcome          string
	Pages            int
	PassthroughFiles int
	Warnings         int
}

// RecordFromReport condenses a build report into a history row.
func RecordFromReport(r *site.BuildReport) Record {
	return Record{
		ID:               r.ID,
		StartedAt:        r.Start,
		Duration:         r.Duration(),
		Outcome:          string(r.Outcome),
		Pages:            r.PagesRendered,
		PassthroughFiles: r.PassthroughFiles,
		Warnings:         len(r.Warnings),
	}
}

// Store persists build records in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// an in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		pages INTEGER NOT NULL,
		passthrough_files INTEGER NOT NULL,
		warnings INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores r, replacing any row with the same ID.
func (s *Store) Record(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds (id, started_at, duration_ms, outcome, pages, passthrough_files, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.Outcome, r.Pages, r.PassthroughFiles, r.Warnings,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, outcome, pages, passthrough_files, warnings
		 FROM builds ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, outcome, pages, passthrough_files, warnings
		 FROM builds WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var r Record
	var startedMS, durationMS int64
	if err := sc.Scan(&r.ID, &startedMS, &durationMS, &r.Outcome, &r.Pages, &r.PassthroughFiles, &r.Warnings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan build: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMS)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
