package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	state "github.com/goliatone/go-state"
)

var _ state.Adapter = (*File)(nil)

// File stores the snapshot as a JSON document on disk. Saves write to a
// temporary file in the same directory and rename over the target so a
// crash mid-write never leaves a torn snapshot behind.
type File struct {
	mu   sync.Mutex
	path string
}

type fileDocument struct {
	Meta     Meta           `json:"meta"`
	Snapshot map[string]any `json:"snapshot"`
}

// NewFile constructs a file adapter rooted at path, creating parent
// directories as needed.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("persist: file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("persist: create dirs: %w", err)
		}
	}
	return &File{path: path}, nil
}

// Load reads the snapshot document, returning (nil, nil) when the file
// does not exist yet.
func (f *File) Load(_ context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: read %s: %w", f.path, err)
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("persist: decode %s: %w", f.path, err)
	}
	return doc.Snapshot, nil
}

// Save writes the snapshot atomically.
func (f *File) Save(_ context.Context, snapshot map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := fileDocument{Meta: newMeta(), Snapshot: snapshot}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("persist: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist: rename %s: %w", f.path, err)
	}
	return nil
}

// Path returns the backing file location.
func (f *File) Path() string {
	return f.path
}
