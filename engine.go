package state

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Engine owns a nested state tree and orchestrates merge, middleware,
// persistence, and notification on every update. Construct one per
// application root and pass it down explicitly.
type Engine struct {
	mu       sync.Mutex
	tree     map[string]any
	registry *registry
	pipeline *pipeline
	emitter  *emitter
	cfg      config
	depth    atomic.Int32
}

// New constructs an Engine seeded with initial. When an adapter is
// configured, its snapshot is loaded once and merged over the initial
// tree (loaded values win). Load failures are logged and leave the
// initial tree intact; persistence is best effort throughout.
func New(initial map[string]any, opts ...Option) *Engine {
	cfg := applyOptions(opts)
	tree := CloneTree(initial)
	if tree == nil {
		tree = map[string]any{}
	}

	e := &Engine{
		tree:     tree,
		registry: newRegistry(),
		pipeline: newPipeline(),
		emitter:  newEmitter(),
		cfg:      cfg,
	}

	if cfg.adapter != nil {
		loaded, err := cfg.adapter.Load(cfg.ctx)
		if err != nil {
			cfg.logger.Log(LogEntry{Op: "load", Err: err})
		} else if loaded != nil {
			e.tree = Merge(e.tree, loaded, "", nil)
		}
	}
	return e
}

// State returns the full state tree, cloned unless the engine runs in
// non-immutable mode.
func (e *Engine) State() map[string]any {
	e.mu.Lock()
	tree := e.tree
	e.mu.Unlock()
	if !e.cfg.immutable {
		return tree
	}
	return CloneTree(tree)
}

// Get returns the value at a dotted path. The second return is false
// when any segment along the path is missing or traversal hits a
// non-object before segments are exhausted.
func (e *Engine) Get(path string) (any, bool) {
	e.mu.Lock()
	tree := e.tree
	e.mu.Unlock()
	value, ok := Lookup(tree, normalizePath(path))
	if !ok {
		return nil, false
	}
	if !e.cfg.immutable {
		return value, true
	}
	return Clone(value), true
}

// SetState deep-merges update into the current tree. When nothing
// changes by structural equality the call is a no-op: no commit, no
// persistence, no events, no notifications. Errors from beforeUpdate
// middleware abort the update before anything is committed.
func (e *Engine) SetState(update map[string]any, opts ...UpdateOption) (map[string]any, error) {
	return e.apply(update, opts, false)
}

// SetStateFunc resolves the update from fn, which receives a clone of
// the current tree and returns the update object to merge.
func (e *Engine) SetStateFunc(fn func(current map[string]any) map[string]any, opts ...UpdateOption) (map[string]any, error) {
	if fn == nil {
		return e.State(), nil
	}
	update := fn(e.snapshot())
	return e.apply(update, opts, false)
}

// Reset replaces the entire tree unconditionally. Changed paths are
// every intermediate and leaf path of the new tree; subscribers bound
// to paths that only existed in the old tree are not notified.
func (e *Engine) Reset(initial map[string]any, opts ...UpdateOption) (map[string]any, error) {
	return e.apply(initial, opts, true)
}

func (e *Engine) apply(input map[string]any, opts []UpdateOption, reset bool) (map[string]any, error) {
	depth := e.depth.Add(1)
	defer e.depth.Add(-1)
	if int(depth) > e.cfg.maxDepth {
		return nil, ErrDepthExceeded
	}

	uo := applyUpdateOptions(opts)
	current := e.snapshot()

	before, after := StageBeforeUpdate, StageAfterUpdate
	event := EventUpdate
	if reset {
		before, after = StageBeforeReset, StageAfterReset
		event = EventReset
	}

	processed, err := e.pipeline.apply(before, input, StageContext{State: current}, e.cfg.logger)
	if err != nil {
		return nil, err
	}

	var next map[string]any
	var changed []string
	if reset {
		next = CloneTree(processed)
		if next == nil {
			next = map[string]any{}
		}
		changed = TreePaths(next)
	} else {
		changed = []string{}
		next = Merge(current, processed, "", &changed)
		if len(changed) == 0 {
			return e.view(current), nil
		}
	}

	e.mu.Lock()
	e.tree = next
	e.mu.Unlock()

	e.pipeline.apply(after, next, StageContext{State: next, ChangedPaths: changed}, e.cfg.logger)

	if e.cfg.adapter != nil && uo.persist {
		if err := e.cfg.adapter.Save(e.cfg.ctx, e.persistable(next)); err != nil {
			e.cfg.logger.Log(LogEntry{Op: "save", Err: err})
		}
	}

	e.emitter.emit(Event{Type: event, State: e.view(next), ChangedPaths: changed}, e.cfg.logger)
	if !uo.silent {
		e.registry.notify(next, changed, e.cfg.immutable, e.cfg.logger)
	}

	e.cfg.logger.Log(LogEntry{Op: event, Path: strings.Join(changed, ",")})
	return e.view(next), nil
}

// Subscribe registers fn for the given dotted paths, or globally when
// none are given. The returned closure removes exactly this
// registration; Unsubscribe removes the callback everywhere.
func (e *Engine) Subscribe(fn Subscriber, paths ...string) (func(), error) {
	if fn == nil {
		return nil, ErrNilSubscriber
	}
	normalized := make([]string, 0, len(paths))
	for _, path := range paths {
		if p := normalizePath(path); p != "" {
			normalized = append(normalized, p)
		}
	}
	return e.registry.add(fn, normalized), nil
}

// Unsubscribe removes fn from every path registration and from the
// global set.
func (e *Engine) Unsubscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	e.registry.remove(fn)
}

// Use appends fn to the stage's middleware list and returns a remover.
func (e *Engine) Use(stage Stage, fn Middleware) (func(), error) {
	if fn == nil {
		return nil, ErrNilMiddleware
	}
	if !stage.valid() {
		return nil, ErrUnknownStage
	}
	return e.pipeline.use(stage, fn), nil
}

// On registers fn for the named event ("update" or "reset") and returns
// a remover.
func (e *Engine) On(event string, fn Listener) (func(), error) {
	if fn == nil {
		return nil, ErrNilListener
	}
	return e.emitter.on(event, fn), nil
}

// Off removes fn from the named event.
func (e *Engine) Off(event string, fn Listener) {
	if fn == nil {
		return
	}
	e.emitter.off(event, fn)
}

// snapshot returns a clone of the current tree for internal pipelines,
// regardless of the immutability setting.
func (e *Engine) snapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CloneTree(e.tree)
}

func (e *Engine) view(tree map[string]any) map[string]any {
	if !e.cfg.immutable {
		return tree
	}
	return CloneTree(tree)
}

// persistable returns the subtree to hand to the adapter, filtered to
// the configured persistent keys when set.
func (e *Engine) persistable(tree map[string]any) map[string]any {
	if len(e.cfg.persistentKeys) == 0 {
		return CloneTree(tree)
	}
	out := map[string]any{}
	for _, key := range e.cfg.persistentKeys {
		if value, ok := Lookup(tree, key); ok {
			setPath(out, key, Clone(value))
		}
	}
	return out
}
