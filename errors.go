package state

import (
	"errors"
	"fmt"
)

var (
	// ErrNilSubscriber indicates Subscribe received a nil callback.
	ErrNilSubscriber = errors.New("state: subscriber must not be nil")
	// ErrNilMiddleware indicates Use received a nil function.
	ErrNilMiddleware = errors.New("state: middleware must not be nil")
	// ErrUnknownStage indicates Use received an unrecognized stage name.
	ErrUnknownStage = errors.New("state: unknown middleware stage")
	// ErrNilListener indicates On received a nil listener.
	ErrNilListener = errors.New("state: listener must not be nil")
	// ErrDepthExceeded indicates re-entrant updates recursed past the
	// configured depth limit.
	ErrDepthExceeded = errors.New("state: update depth exceeded")
	// ErrRuleRejected indicates a validation rule evaluated falsy.
	ErrRuleRejected = errors.New("state: update rejected by rule")
)

// MiddlewareError wraps an error returned by a before-stage middleware
// function, preserving the stage for diagnostics.
type MiddlewareError struct {
	Stage Stage
	Err   error
}

func (e *MiddlewareError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("state: %s middleware: %v", e.Stage, e.Err)
}

func (e *MiddlewareError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RuleError captures rule-engine metadata alongside the originating
// evaluation error.
type RuleError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("state: %s rule %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapRuleError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Engine == "" {
			ruleErr.Engine = engine
		}
		if ruleErr.Expr == "" {
			ruleErr.Expr = expr
		}
		return ruleErr
	}

	return &RuleError{Engine: engine, Expr: expr, Err: err}
}
