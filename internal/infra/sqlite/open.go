package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scrape_jobs (
  id             TEXT PRIMARY KEY,
  profile_id     TEXT NOT NULL,
  scraper_engine TEXT NOT NULL,
  status         TEXT NOT NULL,
  created_at     TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS scrape_job_parts (
  id       TEXT PRIMARY KEY,
  job_id   TEXT NOT NULL REFERENCES scrape_jobs(id) ON DELETE CASCADE,
  city     TEXT,
  postcode TEXT,
  keyword  TEXT,
  status   TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_status
  ON scrape_jobs(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_job_parts_job
  ON scrape_job_parts(job_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
