package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// Record is the view of a call detail record that rule expressions see.
// Absent string fields are empty and an absent timestamp is the zero time.
type Record struct {
	Kind        string
	CallID      string
	Timestamp   time.Time
	Source      string
	Destination string
}

func (r Record) vars() map[string]interface{} {
	return map[string]interface{}{
		"kind":        r.Kind,
		"call_id":     r.CallID,
		"timestamp":   r.Timestamp,
		"source":      r.Source,
		"destination": r.Destination,
	}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("call_id", cel.StringType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("source", cel.StringType),
		cel.Variable("destination", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// Compile checks that expression is a boolean predicate and prepares it.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

func (e *Evaluator) Evaluate(ctx context.Context, program cel.Program, record Record) (bool, error) {
	result, _, err := program.ContextEval(ctx, record.vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	ok, isBool := result.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return ok, nil
}
