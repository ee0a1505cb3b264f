package calls

import (
	"context"
	"fmt"

	celgo "github.com/google/cel-go/cel"

	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/pkg/cel"
	"telbill/pkg/metrics"
)

type rule struct {
	name    string
	field   string
	message string
	program celgo.Program
}

// Rules are boolean CEL expressions every ingested event must satisfy after
// its schema checks pass.
type Rules struct {
	evaluator *cel.Evaluator
	rules     []rule
}

// DefaultRuleConfigs requires 10 or 11 digit subscriber numbers on start events.
func DefaultRuleConfigs() []config.IngestRuleConfig {
	return []config.IngestRuleConfig{
		{Name: "source_number", Field: "source", Expression: constants.DefaultSourceRule, Message: constants.SubscriberRuleMessage},
		{Name: "destination_number", Field: "destination", Expression: constants.DefaultDestinationRule, Message: constants.SubscriberRuleMessage},
	}
}

// NewRules compiles cfgs, or the default rules when cfgs is empty.
func NewRules(evaluator *cel.Evaluator, cfgs []config.IngestRuleConfig) (*Rules, error) {
	if len(cfgs) == 0 {
		cfgs = DefaultRuleConfigs()
	}

	r := &Rules{evaluator: evaluator}
	for i, c := range cfgs {
		program, err := evaluator.Compile(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("ingest rule %d (%s): %w", i, c.Name, err)
		}

		name := c.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		field := c.Field
		if field == "" {
			field = "non_field_errors"
		}
		message := c.Message
		if message == "" {
			message = fmt.Sprintf("Rule %s rejected this record.", name)
		}

		r.rules = append(r.rules, rule{name: name, field: field, message: message, program: program})
	}
	return r, nil
}

func (r *Rules) Len() int {
	return len(r.rules)
}

// Check returns field -> messages for every rule e violates. An evaluation
// error counts as a violation.
func (r *Rules) Check(ctx context.Context, e Event) map[string][]string {
	record := cel.Record{
		Kind:        string(e.Kind),
		CallID:      e.CallID,
		Timestamp:   e.Timestamp,
		Source:      e.Source,
		Destination: e.Destination,
	}

	violations := make(map[string][]string)
	for _, rl := range r.rules {
		ok, err := r.evaluator.Evaluate(ctx, rl.program, record)
		switch {
		case err != nil:
			metrics.IncIngestRuleEvaluation(rl.name, "error")
			violations[rl.field] = append(violations[rl.field], rl.message)
		case !ok:
			metrics.IncIngestRuleEvaluation(rl.name, "rejected")
			violations[rl.field] = append(violations[rl.field], rl.message)
		default:
			metrics.IncIngestRuleEvaluation(rl.name, "passed")
		}
	}
	return violations
}
