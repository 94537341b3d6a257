// Package history persists pipeline run outcomes to a local sqlite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/GabrielUzeda/SubtitleTranslatorAI/internal/pipeline"
)

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		container TEXT NOT NULL,
		mode TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		translated INTEGER NOT NULL DEFAULT 0,
		merged_tracks INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);`); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// RecordRun stores the outcome of one pipeline run. Re-recording the same run
// id overwrites the previous row.
func (s *Store) RecordRun(ctx context.Context, rec pipeline.RunRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
			id, container, mode, state, error, translated, merged_tracks, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			container=excluded.container,
			mode=excluded.mode,
			state=excluded.state,
			error=excluded.error,
			translated=excluded.translated,
			merged_tracks=excluded.merged_tracks,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at`,
		rec.ID,
		rec.Container,
		rec.Mode,
		rec.State,
		rec.Error,
		rec.Translated,
		rec.MergedTracks,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
	)
	return err
}

// RecentRuns returns up to limit runs, most recently finished first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]pipeline.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, container, mode, state, error, translated, merged_tracks, started_at, finished_at
		 FROM runs
		 ORDER BY finished_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]pipeline.RunRecord, 0)
	for rows.Next() {
		var rec pipeline.RunRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Container,
			&rec.Mode,
			&rec.State,
			&rec.Error,
			&rec.Translated,
			&rec.MergedTracks,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// LastRunFor returns the most recent run for a container, if any.
func (s *Store) LastRunFor(ctx context.Context, containerPath string) (pipeline.RunRecord, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, container, mode, state, error, translated, merged_tracks, started_at, finished_at
		 FROM runs
		 WHERE container = ?
		 ORDER BY finished_at DESC
		 LIMIT 1`,
		containerPath,
	)

	var rec pipeline.RunRecord
	if err := row.Scan(
		&rec.ID,
		&rec.Container,
		&rec.Mode,
		&rec.State,
		&rec.Error,
		&rec.Translated,
		&rec.MergedTracks,
		&rec.StartedAt,
		&rec.FinishedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return pipeline.RunRecord{}, false, nil
		}
		return pipeline.RunRecord{}, false, err
	}
	return rec, true, nil
}
