package state

import (
	"context"
	"log/slog"
)

// Adapter loads and saves durable snapshots of the state tree. Load
// returns (nil, nil) when no snapshot exists. Implementations live in
// pkg/persist; the engine calls Load once at construction and Save
// after every committed update or reset.
type Adapter interface {
	Load(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, snapshot map[string]any) error
}

// DefaultMaxDepth bounds re-entrant updates triggered from subscribers.
const DefaultMaxDepth = 100

type config struct {
	adapter        Adapter
	persistentKeys []string
	immutable      bool
	maxDepth       int
	logger         Logger
	ctx            context.Context
}

// Option configures an Engine at construction.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{
		immutable: true,
		maxDepth:  DefaultMaxDepth,
		logger:    noopLogger{},
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithAdapter enables persistence through the supplied adapter.
func WithAdapter(adapter Adapter) Option {
	return func(cfg *config) {
		cfg.adapter = adapter
	}
}

// WithPersistentKeys restricts what Save receives to the subtrees at the
// given dotted paths. Keys are normalized; empty entries are dropped.
func WithPersistentKeys(keys ...string) Option {
	return func(cfg *config) {
		normalized := make([]string, 0, len(keys))
		for _, key := range keys {
			if path := normalizePath(key); path != "" {
				normalized = append(normalized, path)
			}
		}
		cfg.persistentKeys = normalized
	}
}

// WithImmutable controls clone-on-read. It defaults to true; disabling
// it hands out live references to internal state, which callers must
// then treat as read-only.
func WithImmutable(immutable bool) Option {
	return func(cfg *config) {
		cfg.immutable = immutable
	}
}

// WithMaxDepth overrides the re-entrant update depth limit.
func WithMaxDepth(depth int) Option {
	return func(cfg *config) {
		if depth > 0 {
			cfg.maxDepth = depth
		}
	}
}

// WithLogger attaches a logger for recoverable failures and debug
// traces.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithDebug routes engine events through slog's default logger. A
// logger installed via WithLogger wins.
func WithDebug() Option {
	return func(cfg *config) {
		if _, ok := cfg.logger.(noopLogger); ok {
			cfg.logger = NewSlogLogger(slog.Default())
		}
	}
}

// WithContext sets the context handed to adapter Load/Save calls.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

type updateConfig struct {
	silent  bool
	persist bool
}

// UpdateOption adjusts a single SetState or Reset call.
type UpdateOption func(*updateConfig)

func applyUpdateOptions(opts []UpdateOption) updateConfig {
	cfg := updateConfig{persist: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Silent commits and persists the update without notifying path
// subscribers. Engine events still fire, so listeners attached via On
// observe every commit.
func Silent() UpdateOption {
	return func(cfg *updateConfig) {
		cfg.silent = true
	}
}

// NoPersist skips the adapter save for this call only.
func NoPersist() UpdateOption {
	return func(cfg *updateConfig) {
		cfg.persist = false
	}
}
