// Package state implements a reactive container for a nested, JSON-like
// state tree. Updates are deep-merged into the current tree, the set of
// dotted paths that actually changed is computed by structural equality,
// and subscribers registered for those paths (or their ancestors, or
// globally) are notified exactly once per committed update.
//
// Responsibilities:
//   - Engine owns the tree and orchestrates merge, middleware,
//     persistence, and notification on every SetState/Reset.
//   - Middleware runs in four stages (beforeUpdate, afterUpdate,
//     beforeReset, afterReset); before-stage errors abort the operation,
//     after-stage errors are logged and skipped.
//   - Persistence stays behind the Adapter interface; implementations
//     live in pkg/persist and are loaded once at construction and saved
//     after every committed update.
//   - Rule middleware (Validate, Compute) evaluates expressions through
//     pluggable engines (expr, CEL, and goja behind the js_eval tag).
//
// Data flow:
//
//	SetState -> beforeUpdate -> Merge -> commit -> afterUpdate ->
//	Adapter.Save -> emit "update" -> notify subscribers -> clone out
//
// The engine runs updates synchronously and to completion. A subscriber
// may call back into SetState; nested updates run before the outer
// notify pass resumes and are bounded by the configured depth limit.
// Engine methods are safe for concurrent use, but the tree is a single
// in-memory authority: concurrent writers race on last-write-wins terms
// and persistence is the only (best effort) cross-instance signal.
package state
