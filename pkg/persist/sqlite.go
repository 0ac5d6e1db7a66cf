package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	state "github.com/goliatone/go-state"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ state.Adapter = (*SQLite)(nil)

// SQLite persists the snapshot as a JSON blob in a single-row table
// keyed by a caller-chosen snapshot key, so several engines can share
// one database file.
type SQLite struct {
	mu  sync.Mutex
	db  *sql.DB
	key string
}

// NewSQLite opens (or creates) a SQLite-backed adapter at path. key
// namespaces the snapshot row; it defaults to "default".
func NewSQLite(path, key string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("persist: sqlite path is required")
	}
	if key == "" {
		key = "default"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("persist: create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		snapshot_id TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: create snapshots table: %w", err)
	}
	return &SQLite{db: db, key: key}, nil
}

// Load reads the snapshot row, returning (nil, nil) when absent.
func (s *SQLite) Load(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE key = ?`, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: select snapshot: %w", err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("persist: decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Save upserts the snapshot row with fresh metadata.
func (s *SQLite) Save(ctx context.Context, snapshot map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("persist: encode snapshot: %w", err)
	}
	meta := newMeta()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(key, payload, snapshot_id, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET
			payload=excluded.payload,
			snapshot_id=excluded.snapshot_id,
			updated_at=excluded.updated_at`,
		s.key, payload, meta.SnapshotID, meta.UpdatedAt); err != nil {
		return fmt.Errorf("persist: upsert snapshot: %w", err)
	}
	return nil
}

// Meta reads provenance for the stored snapshot.
func (s *SQLite) Meta(ctx context.Context) (Meta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta Meta
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id, updated_at FROM snapshots WHERE key = ?`, s.key).
		Scan(&meta.SnapshotID, &meta.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, fmt.Errorf("persist: select meta: %w", err)
	}
	return meta, true, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
