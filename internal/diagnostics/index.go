package diagnostics

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_artifact_index.sql
var indexMigrationV1 string

// Artifact is one indexed diagnostic file.
type Artifact struct {
	ID        int64
	Path      string
	Base      string
	Size      int64
	CreatedAt time.Time
}

// Index is a SQLite catalog of written artifacts. The files themselves are
// the source of truth; the index only exists so listing and filtering do
// not require walking the log directory.
type Index struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

// OpenIndex opens (creating if necessary) the artifact index at dbPath.
func OpenIndex(dbPath string) (*Index, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	// WAL mode so a reader (the logs CLI) never blocks the writer.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	ix := &Index{dbPath: dbPath, db: db}
	if err := ix.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running index migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running index migrations: %w", err)
	}
	return ix, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

func (ix *Index) migrate() error {
	var version int
	err := ix.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := ix.db.Exec(indexMigrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Record inserts one artifact row. Re-recording the same path updates its
// size and timestamp instead of failing.
func (ix *Index) Record(ctx context.Context, a Artifact) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO artifacts (path, base, size_bytes, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at
	`, a.Path, a.Base, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording artifact: %w", err)
	}
	return nil
}

// List returns artifacts newest-first, optionally filtered by base name.
// A limit of 0 means no limit.
func (ix *Index) List(ctx context.Context, base string, limit int) ([]Artifact, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	query := `
		SELECT id, path, base, size_bytes, created_at
		FROM artifacts
	`
	args := []any{}
	if base != "" {
		query += " WHERE base = ?"
		args = append(args, base)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.Path, &a.Base, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}
	return artifacts, nil
}

// Latest returns the newest artifact for base, or nil if none exists.
func (ix *Index) Latest(ctx context.Context, base string) (*Artifact, error) {
	rows, err := ix.List(ctx, base, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Remove drops the row for path. Used by housekeeping after it deletes the
// file itself.
func (ix *Index) Remove(ctx context.Context, path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.ExecContext(ctx, "DELETE FROM artifacts WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("removing artifact: %w", err)
	}
	return nil
}

// Count returns the number of indexed artifacts.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifacts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}
