// Package store is a SQLite implementation of the review collaborators:
// document persistence, validation, re-extraction job submission and the
// schema store.
//
// Usage:
//
//	st, err := store.Open("schemaform.db")
//	sess := review.NewSession(st.Collaborators(confirm))
//
// In tests, store.Open(":memory:") keeps everything in one connection.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/reoring/schemaform/review"
)

var (
	// ErrNotFound is returned for unknown documents and schemas.
	ErrNotFound = errors.New("store: not found")
	// ErrValidationFailed rejects verification while stored validation results
	// contain errors and the patch does not allow them.
	ErrValidationFailed = errors.New("store: cannot verify a document with validation errors")
)

const ddl = `
CREATE TABLE IF NOT EXISTS schemas (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL DEFAULT 1,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	id                 TEXT PRIMARY KEY,
	schema_id          TEXT NOT NULL DEFAULT '',
	extracted_data     TEXT NOT NULL,
	human_verified     INTEGER NOT NULL DEFAULT 0,
	validation_results TEXT,
	updated_at         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	target      TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_status ON jobs(status, created_at);
`

type config struct {
	busyTimeout int
	mkdirAll    bool
	log         *zap.Logger
	now         func() time.Time
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

var (
	_ review.Persister    = (*Store)(nil)
	_ review.Fetcher      = (*Store)(nil)
	_ review.Validator    = (*Store)(nil)
	_ review.JobSubmitter = (*Store)(nil)
	_ review.SchemaStore  = (*Store)(nil)
)

// Open opens (and migrates) the database at path. ":memory:" databases are
// pinned to a single connection.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 10_000, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path, cfg.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db, log: cfg.log, now: cfg.now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Collaborators returns the store wired as every review collaborator, with
// confirm deciding verification overrides.
func (s *Store) Collaborators(confirm review.Confirmer) review.Collaborators {
	return review.Collaborators{
		Persister: s,
		Fetcher:   s,
		Validator: s,
		Jobs:      s,
		Schemas:   s,
		Confirmer: confirm,
	}
}

// dsn carries the pragmas as connection parameters; a PRAGMA Exec reaches
// only one pooled connection.
func dsn(path string, busyTimeout int) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout)
}

func (s *Store) timestamp() string { return s.now().UTC().Format(time.RFC3339Nano) }
