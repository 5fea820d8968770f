package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Index keeps artifact metadata in sqlite for listing and diagnostics.
// Presence decisions never consult the index, so a lost database only
// loses bookkeeping, not artifacts.
type Index struct {
	db *sql.DB
}

func NewIndex(path string) (*Index, error) {
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

	index := &Index{db: db}
	if err := index.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return index, nil
}

func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Index) init(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS artifacts (
		filename TEXT PRIMARY KEY,
		cache_key TEXT NOT NULL,
		variant TEXT NOT NULL DEFAULT '',
		provenance TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}
	if _, err := i.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_cache_key ON artifacts (cache_key);`); err != nil {
		return fmt.Errorf("create cache_key index: %w", err)
	}
	return nil
}

// RecordArtifact upserts the metadata row for a published artifact.
func (i *Index) RecordArtifact(filename string, artifact Artifact) error {
	_, err := i.db.Exec(
		`INSERT INTO artifacts (filename, cache_key, variant, provenance, mode, bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET
		   provenance = excluded.provenance,
		   mode = excluded.mode,
		   bytes = excluded.bytes`,
		filename,
		artifact.CacheKey,
		artifact.Variant,
		artifact.Provenance,
		artifact.Mode,
		artifact.Bytes,
		artifact.CreatedAt.UTC(),
	)
	return err
}

// ListByKey returns the recorded artifacts for one cache key, oldest first.
func (i *Index) ListByKey(cacheKey string) ([]Artifact, error) {
	rows, err := i.db.Query(
		`SELECT cache_key, variant, provenance, mode, bytes, created_at
		 FROM artifacts
		 WHERE cache_key = ?
		 ORDER BY created_at ASC`,
		cacheKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Artifact, 0)
	for rows.Next() {
		var item Artifact
		if err := rows.Scan(
			&item.CacheKey,
			&item.Variant,
			&item.Provenance,
			&item.Mode,
			&item.Bytes,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}
