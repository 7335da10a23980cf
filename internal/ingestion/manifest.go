package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Manifest is a SQLite-backed record of ingested chunk checksums. It lets
// repeated `charchat ingest` runs skip chunks that are already in the
// vector store instead of re-embedding them.
type Manifest struct {
	db *sql.DB
}

// DefaultManifestPath returns the default path for the ingestion manifest.
// It resolves to ~/.charchat/ingest.db, creating the directory if needed.
func DefaultManifestPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("ingestion: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".charchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ingestion: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ingest.db"), nil
}

// OpenManifest opens (or creates) a Manifest at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func OpenManifest(path string) (*Manifest, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	m := &Manifest{db: db}
	if err := m.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// migrate creates the schema if it does not already exist.
func (m *Manifest) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id     TEXT    PRIMARY KEY,
    source       TEXT    NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks (source);
`
	if _, err := m.db.Exec(ddl); err != nil {
		return fmt.Errorf("ingestion: migrate: %w", err)
	}
	return nil
}

// Seen reports whether a chunk ID has already been recorded.
func (m *Manifest) Seen(ctx context.Context, chunkID string) (bool, error) {
	const q = `SELECT 1 FROM chunks WHERE chunk_id = ?`
	var one int
	err := m.db.QueryRowContext(ctx, q, chunkID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ingestion: seen: %w", err)
	}
	return true, nil
}

// Record persists a chunk ID after a successful upsert.
func (m *Manifest) Record(ctx context.Context, chunkID, source string) error {
	const q = `INSERT OR REPLACE INTO chunks (chunk_id, source, ingested_at) VALUES (?, ?, ?)`
	if _, err := m.db.ExecContext(ctx, q, chunkID, source, time.Now().Unix()); err != nil {
		return fmt.Errorf("ingestion: record: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (m *Manifest) Close() error {
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("ingestion: close: %w", err)
	}
	return nil
}
