// Package persist provides snapshot adapters for the state engine:
// in-memory, JSON file, SQLite, Postgres, and S3-compatible object
// storage. Every adapter stores the tree as a single JSON document and
// satisfies state.Adapter; the engine treats all of them as best-effort
// durable caches, not systems of record.
package persist

import (
	"time"

	"github.com/google/uuid"
)

// Meta records provenance for the most recent saved snapshot.
type Meta struct {
	SnapshotID string    `json:"snapshot_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newMeta() Meta {
	return Meta{
		SnapshotID: uuid.NewString(),
		UpdatedAt:  time.Now().UTC(),
	}
}
