// Package attemptlog persists provider attempts to a local sqlite database
// so failed extractions can be diagnosed after the fact. The store is
// optional; the cascade works identically without it.
package attemptlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nxreporting/stockex/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS extraction_attempts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	filename    TEXT NOT NULL,
	provider    TEXT NOT NULL,
	attempt     INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_attempts_filename ON extraction_attempts(filename);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open attempt log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply attempt log schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record writes every attempt of one extraction run in a single
// transaction.
func (s *Store) Record(ctx context.Context, filename string, attempts []model.ExtractionAttempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extraction_attempts
			(filename, provider, attempt, started_at, duration_ms, succeeded, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range attempts {
		succeeded := 0
		if a.Succeeded {
			succeeded = 1
		}
		if _, err := stmt.ExecContext(ctx,
			filename, a.Provider, a.Attempt, a.StartedAt.UTC().Format(time.RFC3339Nano),
			a.DurationMs, succeeded, a.ErrorKind, a.Error,
		); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
	}
	return tx.Commit()
}

// List returns the recorded attempts for filename, oldest first.
func (s *Store) List(ctx context.Context, filename string) ([]model.ExtractionAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, attempt, started_at, duration_ms, succeeded, error_kind, error
		FROM extraction_attempts WHERE filename = ? ORDER BY id`, filename)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []model.ExtractionAttempt
	for rows.Next() {
		var (
			a         model.ExtractionAttempt
			startedAt string
			succeeded int
		)
		if err := rows.Scan(&a.Provider, &a.Attempt, &startedAt, &a.DurationMs, &succeeded, &a.ErrorKind, &a.Error); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Succeeded = succeeded == 1
		if ts, perr := time.Parse(time.RFC3339Nano, startedAt); perr == nil {
			a.StartedAt = ts
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
