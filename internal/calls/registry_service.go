package calls

import (
	"context"
	"fmt"

	"telbill/internal/constants"
	"telbill/internal/pipeline"
)

// RegistryService validates ingested call events and forwards them to the
// consolidation stage.
type RegistryService struct {
	*pipeline.Base

	rules    *Rules
	registry RegistryStore

	event Event
}

// NewRegistryService builds the service around base. rules and registry are
// optional.
func NewRegistryService(base *pipeline.Base, rules *Rules, registry RegistryStore) *RegistryService {
	return &RegistryService{Base: base, rules: rules, registry: registry}
}

func (s *RegistryService) ObtainMessage(context.Context) error {
	return nil
}

func (s *RegistryService) ValidateMessage(ctx context.Context) (bool, error) {
	event, verr := ParseEvent(s.Message())
	if verr != nil {
		return false, verr
	}

	if s.rules != nil {
		if violations := s.rules.Check(ctx, event); len(violations) > 0 {
			return false, &pipeline.ValidationError{Fields: violations}
		}
	}

	s.event = event
	return true, nil
}

func (s *RegistryService) TransformMessage(context.Context) (any, error) {
	return s.event, nil
}

func (s *RegistryService) PersistData(ctx context.Context) (any, error) {
	if s.registry == nil {
		return s.event, nil
	}

	inserted, err := s.registry.Save(ctx, s.event, s.JobID())
	if err != nil {
		return nil, fmt.Errorf("persist registry: %w", err)
	}
	if !inserted {
		s.Logger().InfowCtx(ctx, "Registry already stored",
			"call_id", s.event.CallID,
			"kind", s.event.Kind,
		)
	}
	return s.event, nil
}

func (s *RegistryService) PropagateResult(ctx context.Context) (bool, error) {
	if err := s.Publish(ctx, s.event); err != nil {
		return false, err
	}
	return true, nil
}

func RegistryDefinition(rules *Rules, registry RegistryStore) (pipeline.Definition, error) {
	return pipeline.Define(constants.RegistryServiceName, constants.RegistryTrigger, constants.RegistryQueue,
		func(base *pipeline.Base) (pipeline.Service, error) {
			return NewRegistryService(base, rules, registry), nil
		})
}
