package main

import (
	"fmt"

	"telbill/internal/bills"
	"telbill/internal/calls"
	"telbill/internal/config"
	"telbill/internal/pipeline"
	"telbill/pkg/cel"
)

type serviceDeps struct {
	callStore     calls.CallStore
	registryStore calls.RegistryStore
	billStore     bills.BillStore
}

// buildRegistry registers every pipeline service. The rates and ingest rules
// are checked here so a bad config stops the worker before it consumes.
func buildRegistry(cfg *config.Config, deps serviceDeps) (*pipeline.Registry, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	rules, err := calls.NewRules(evaluator, cfg.Ingest.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ingest rules: %w", err)
	}

	rates, err := bills.ParseRates(cfg.Billing.StandingCharge, cfg.Billing.CallCharge)
	if err != nil {
		return nil, err
	}

	registryDef, err := calls.RegistryDefinition(rules, deps.registryStore)
	if err != nil {
		return nil, err
	}
	callDef, err := calls.CallDefinition(deps.callStore)
	if err != nil {
		return nil, err
	}
	billDef, err := bills.BillDefinition(rates, deps.billStore)
	if err != nil {
		return nil, err
	}

	return pipeline.NewRegistry(registryDef, callDef, billDef)
}

// selectTriggers narrows the consumed topics to pipeline.triggers. An empty
// list means every registered trigger.
func selectTriggers(registry *pipeline.Registry, configured []string) ([]string, error) {
	if len(configured) == 0 {
		return registry.Triggers(), nil
	}

	for _, trigger := range configured {
		if _, ok := registry.Lookup(trigger); !ok {
			return nil, &pipeline.DispatchError{Trigger: trigger, Err: pipeline.ErrUnknownTrigger}
		}
	}
	return configured, nil
}
