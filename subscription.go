package state

import (
	"fmt"
	"reflect"
	"sync"
)

// Change carries the payload delivered to a subscriber. Path and Value
// are set for path subscriptions; ChangedPaths is the full changed set
// and is always populated. State is the tree after the commit, cloned
// unless the engine runs in non-immutable mode.
type Change struct {
	Path         string
	Value        any
	State        map[string]any
	ChangedPaths []string
}

// Subscriber receives change notifications. Subscriber identity (for
// deduplication and Unsubscribe) is the function's code pointer, so two
// closures built from the same function literal count as one subscriber.
type Subscriber func(Change)

type subscriberEntry struct {
	id uintptr
	fn Subscriber
}

// registry maps dotted paths (and a global bucket) to subscriber sets.
type registry struct {
	mu     sync.Mutex
	global []subscriberEntry
	byPath map[string][]subscriberEntry
}

func newRegistry() *registry {
	return &registry{byPath: map[string][]subscriberEntry{}}
}

func subscriberID(fn Subscriber) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// add registers fn under every path, or globally when paths is empty,
// and returns a closure that removes exactly this registration.
func (r *registry) add(fn Subscriber, paths []string) func() {
	entry := subscriberEntry{id: subscriberID(fn), fn: fn}

	r.mu.Lock()
	if len(paths) == 0 {
		r.global = append(r.global, entry)
	} else {
		for _, path := range paths {
			r.byPath[path] = append(r.byPath[path], entry)
		}
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.removeID(entry.id, paths)
		})
	}
}

// remove drops fn from every registration, global included.
func (r *registry) remove(fn Subscriber) {
	id := subscriberID(fn)
	r.mu.Lock()
	r.global = dropEntry(r.global, id)
	for path, entries := range r.byPath {
		trimmed := dropEntry(entries, id)
		if len(trimmed) == 0 {
			delete(r.byPath, path)
			continue
		}
		r.byPath[path] = trimmed
	}
	r.mu.Unlock()
}

func (r *registry) removeID(id uintptr, paths []string) {
	r.mu.Lock()
	if len(paths) == 0 {
		r.global = dropEntry(r.global, id)
	}
	for _, path := range paths {
		trimmed := dropEntry(r.byPath[path], id)
		if len(trimmed) == 0 {
			delete(r.byPath, path)
			continue
		}
		r.byPath[path] = trimmed
	}
	r.mu.Unlock()
}

func dropEntry(entries []subscriberEntry, id uintptr) []subscriberEntry {
	out := entries[:0]
	for _, entry := range entries {
		if entry.id != id {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// notify invokes matching subscribers in three passes over the changed
// paths: every exact match, then every ancestor match, then global
// subscribers not already reached. Each subscriber runs at most once
// per call, so one registered at both an exact and an ancestor path
// sees the exact payload. A panicking subscriber is recovered and
// logged so the rest of the pass completes.
func (r *registry) notify(tree map[string]any, changed []string, immutable bool, logger Logger) {
	r.mu.Lock()
	byPath := make(map[string][]subscriberEntry, len(r.byPath))
	for path, entries := range r.byPath {
		byPath[path] = append([]subscriberEntry(nil), entries...)
	}
	global := append([]subscriberEntry(nil), r.global...)
	r.mu.Unlock()

	outTree := tree
	if immutable {
		outTree = CloneTree(tree)
	}
	viewValue := func(value any) any {
		if immutable {
			return Clone(value)
		}
		return value
	}

	notified := map[uintptr]struct{}{}
	deliver := func(entry subscriberEntry, change Change) {
		if _, done := notified[entry.id]; done {
			return
		}
		notified[entry.id] = struct{}{}
		invokeSubscriber(entry.fn, change, logger)
	}

	for _, path := range changed {
		value, _ := Lookup(tree, path)
		for _, entry := range byPath[path] {
			deliver(entry, Change{
				Path:         path,
				Value:        viewValue(value),
				State:        outTree,
				ChangedPaths: changed,
			})
		}
	}

	for _, path := range changed {
		for _, ancestor := range ancestorPaths(path) {
			entries := byPath[ancestor]
			if len(entries) == 0 {
				continue
			}
			ancestorValue, _ := Lookup(tree, ancestor)
			for _, entry := range entries {
				deliver(entry, Change{
					Path:         ancestor,
					Value:        viewValue(ancestorValue),
					State:        outTree,
					ChangedPaths: changed,
				})
			}
		}
	}

	for _, entry := range global {
		deliver(entry, Change{
			State:        outTree,
			ChangedPaths: changed,
		})
	}
}

func invokeSubscriber(fn Subscriber, change Change, logger Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log(LogEntry{
				Op:   "notify",
				Path: change.Path,
				Err:  fmt.Errorf("state: subscriber panic: %v", rec),
			})
		}
	}()
	fn(change)
}
