package state

import (
	"fmt"
	"reflect"
	"sync"
)

// Event names emitted by the engine, independent of path subscriptions.
const (
	EventUpdate = "update"
	EventReset  = "reset"
)

// Event is the payload delivered to generic listeners.
type Event struct {
	Type         string
	State        map[string]any
	ChangedPaths []string
}

// Listener receives engine events registered via On.
type Listener func(Event)

type listenerEntry struct {
	id uintptr
	fn Listener
}

// emitter fans events out to listeners keyed by event name. A failing
// listener is logged and never blocks the rest.
type emitter struct {
	mu        sync.Mutex
	listeners map[string][]listenerEntry
}

func newEmitter() *emitter {
	return &emitter{listeners: map[string][]listenerEntry{}}
}

func (e *emitter) on(event string, fn Listener) func() {
	entry := listenerEntry{id: reflect.ValueOf(fn).Pointer(), fn: fn}
	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], entry)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.off(event, fn)
		})
	}
}

func (e *emitter) off(event string, fn Listener) {
	id := reflect.ValueOf(fn).Pointer()
	e.mu.Lock()
	entries := e.listeners[event]
	out := entries[:0]
	for _, entry := range entries {
		if entry.id != id {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		delete(e.listeners, event)
	} else {
		e.listeners[event] = out
	}
	e.mu.Unlock()
}

func (e *emitter) emit(event Event, logger Logger) {
	e.mu.Lock()
	entries := append([]listenerEntry(nil), e.listeners[event.Type]...)
	e.mu.Unlock()

	for _, entry := range entries {
		invokeListener(entry.fn, event, logger)
	}
}

func invokeListener(fn Listener, event Event, logger Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log(LogEntry{
				Op:  "emit",
				Err: fmt.Errorf("state: %s listener panic: %v", event.Type, rec),
			})
		}
	}()
	fn(event)
}
