package state

import "sync"

// Stage names one of the four middleware extension points.
type Stage string

const (
	StageBeforeUpdate Stage = "beforeUpdate"
	StageAfterUpdate  Stage = "afterUpdate"
	StageBeforeReset  Stage = "beforeReset"
	StageAfterReset   Stage = "afterReset"
)

func (s Stage) valid() bool {
	switch s {
	case StageBeforeUpdate, StageAfterUpdate, StageBeforeReset, StageAfterReset:
		return true
	default:
		return false
	}
}

// pre reports whether the stage runs before the commit. Errors in a pre
// stage abort the operation; errors afterwards are logged and skipped.
func (s Stage) pre() bool {
	return s == StageBeforeUpdate || s == StageBeforeReset
}

// StageContext carries the auxiliary inputs for a middleware invocation.
// State holds the current tree for the before stages; ChangedPaths is
// populated for afterUpdate.
type StageContext struct {
	Stage        Stage
	State        map[string]any
	ChangedPaths []string
}

// Middleware transforms the value moving through a stage. Returning an
// error from a before stage rejects the whole update before anything is
// committed; an error from an after stage is logged and the pipeline
// continues with the previous value.
type Middleware func(value map[string]any, ctx StageContext) (map[string]any, error)

type middlewareEntry struct {
	id uint64
	fn Middleware
}

type pipeline struct {
	mu     sync.Mutex
	nextID uint64
	stages map[Stage][]middlewareEntry
}

func newPipeline() *pipeline {
	return &pipeline{stages: map[Stage][]middlewareEntry{}}
}

// use appends fn to the stage list and returns a remover for exactly
// this registration.
func (p *pipeline) use(stage Stage, fn Middleware) func() {
	p.mu.Lock()
	p.nextID++
	entry := middlewareEntry{id: p.nextID, fn: fn}
	p.stages[stage] = append(p.stages[stage], entry)
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			entries := p.stages[stage]
			out := entries[:0]
			for _, existing := range entries {
				if existing.id != entry.id {
					out = append(out, existing)
				}
			}
			if len(out) == 0 {
				delete(p.stages, stage)
			} else {
				p.stages[stage] = out
			}
			p.mu.Unlock()
		})
	}
}

// apply reduces the stage's middleware list over value in registration
// order, each function receiving the prior function's output.
func (p *pipeline) apply(stage Stage, value map[string]any, ctx StageContext, logger Logger) (map[string]any, error) {
	p.mu.Lock()
	entries := append([]middlewareEntry(nil), p.stages[stage]...)
	p.mu.Unlock()

	ctx.Stage = stage
	for _, entry := range entries {
		next, err := entry.fn(value, ctx)
		if err != nil {
			if stage.pre() {
				return nil, &MiddlewareError{Stage: stage, Err: err}
			}
			logger.Log(LogEntry{Op: "middleware", Stage: stage, Err: err})
			continue
		}
		value = next
	}
	return value, nil
}
