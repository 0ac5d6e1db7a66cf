package state

import (
	"fmt"
	"time"
)

// RuleContext carries the inputs for one rule evaluation. Snapshot is
// the value moving through the middleware stage; Args carries auxiliary
// bindings (the engine provides the current tree under "state").
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

// logEvaluation records one rule evaluation attempt: the engine kind,
// the expression, how long it ran, and the error if it failed.
func logEvaluation(logger Logger, engine, expr string, start time.Time, err error) {
	if logger == nil {
		return
	}
	logger.Log(LogEntry{
		Op:       "rule." + engine,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      err,
	})
}

// RuleEvaluator executes expressions against a rule context.
type RuleEvaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Validate builds a before-stage middleware that evaluates expr against
// the incoming update (with the current tree bound as "state" in Args)
// and rejects the operation when the result is falsy. Evaluation errors
// also reject: a rule that cannot run must not wave updates through.
func Validate(evaluator RuleEvaluator, expr string) Middleware {
	return func(value map[string]any, ctx StageContext) (map[string]any, error) {
		if evaluator == nil {
			return nil, wrapRuleError("", expr, fmt.Errorf("evaluator is required"))
		}
		result, err := evaluator.Evaluate(RuleContext{
			Snapshot: value,
			Args:     map[string]any{"state": ctx.State},
		}, expr)
		if err != nil {
			return nil, err
		}
		if !truthy(result) {
			return nil, &RuleError{Expr: expr, Err: ErrRuleRejected}
		}
		return value, nil
	}
}

// Compute builds a before-stage middleware that evaluates expr and
// writes the result into the update at a dotted path, creating
// intermediate objects as needed.
func Compute(evaluator RuleEvaluator, path, expr string) Middleware {
	return func(value map[string]any, ctx StageContext) (map[string]any, error) {
		if evaluator == nil {
			return nil, wrapRuleError("", expr, fmt.Errorf("evaluator is required"))
		}
		result, err := evaluator.Evaluate(RuleContext{
			Snapshot: value,
			Args:     map[string]any{"state": ctx.State},
		}, expr)
		if err != nil {
			return nil, err
		}
		out := CloneTree(value)
		if out == nil {
			out = map[string]any{}
		}
		setPath(out, path, result)
		return out, nil
	}
}

// truthy mirrors loose expression semantics: nil, false, zero numbers,
// and empty strings are falsy; everything else passes.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if f, ok := asFloat(value); ok {
		return f != 0
	}
	return true
}

func snapshotAsMap(value any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
