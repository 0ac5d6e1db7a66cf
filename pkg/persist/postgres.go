package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	state "github.com/goliatone/go-state"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ state.Adapter = (*Postgres)(nil)

const postgresDriver = "pgx"

// Postgres mirrors the SQLite adapter's single-row snapshot shape on a
// JSONB column, opened through the pgx stdlib driver.
type Postgres struct {
	mu  sync.Mutex
	db  *sql.DB
	key string
}

// NewPostgres opens a Postgres-backed adapter using dsn. key namespaces
// the snapshot row; it defaults to "default".
func NewPostgres(ctx context.Context, dsn, key string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("persist: postgres dsn is required")
	}
	if key == "" {
		key = "default"
	}
	db, err := sql.Open(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		snapshot_id TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: create snapshots table: %w", err)
	}
	return &Postgres{db: db, key: key}, nil
}

// Load reads the snapshot row, returning (nil, nil) when absent.
func (p *Postgres) Load(ctx context.Context) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE key = $1`, p.key).Scan(&payload)
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
func (p *Postgres) Save(ctx context.Context, snapshot map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("persist: encode snapshot: %w", err)
	}
	meta := newMeta()
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO snapshots(key, payload, snapshot_id, updated_at) VALUES($1,$2,$3,$4)
		ON CONFLICT(key) DO UPDATE SET
			payload=excluded.payload,
			snapshot_id=excluded.snapshot_id,
			updated_at=excluded.updated_at`,
		p.key, payload, meta.SnapshotID, meta.UpdatedAt); err != nil {
		return fmt.Errorf("persist: upsert snapshot: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for integration testing hooks.
func (p *Postgres) DB() *sql.DB { return p.db }

// Close releases the underlying database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}
