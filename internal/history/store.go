// Package history keeps one SQLite row per finished dictation session.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"echomic/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	sample_rate    INTEGER NOT NULL,
	segments       INTEGER NOT NULL,
	dropped_chunks INTEGER NOT NULL,
	transcript     TEXT NOT NULL,
	outcome        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at);
`

var ErrEmptyID = errors.New("session id is empty")

// Store implements ports.HistoryStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed. Use ":memory:" for
// a throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	slog.Debug("[history] store opened", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts rec, replacing any row with the same id.
func (s *Store) Record(ctx context.Context, rec domain.SessionRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO sessions
	(id, started_at, duration_ms, sample_rate, segments, dropped_chunks, transcript, outcome)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UnixMilli(),
		rec.Duration.Milliseconds(),
		rec.SampleRate,
		rec.Segments,
		int64(rec.DroppedChunks),
		rec.Transcript,
		rec.Outcome,
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit rows, newest first. limit <= 0 means 50.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, duration_ms, sample_rate, segments, dropped_chunks, transcript, outcome
FROM sessions
ORDER BY started_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var (
			rec        domain.SessionRecord
			startedAt  int64
			durationMS int64
			dropped    int64
		)
		if err := rows.Scan(&rec.ID, &startedAt, &durationMS, &rec.SampleRate, &rec.Segments, &dropped, &rec.Transcript, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.DroppedChunks = uint64(dropped)
		out = append(out, rec)
	}
	return out, rows.Err()
}
