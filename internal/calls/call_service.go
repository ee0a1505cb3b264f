package calls

import (
	"context"
	"encoding/json"
	"fmt"

	"telbill/internal/constants"
	"telbill/internal/pipeline"
)

// CallService merges start and stop events into one Call and propagates the
// Call once it is complete. Exactly one job propagates each call.
type CallService struct {
	*pipeline.Base

	store CallStore

	event  Event
	update CallUpdate
	call   Call
}

func NewCallService(base *pipeline.Base, store CallStore) *CallService {
	return &CallService{Base: base, store: store}
}

func (s *CallService) ObtainMessage(context.Context) error {
	return nil
}

// ValidateMessage only checks what consolidation needs; the event was
// validated fully on ingest.
func (s *CallService) ValidateMessage(context.Context) (bool, error) {
	var e Event
	if err := json.Unmarshal([]byte(s.Message()), &e); err != nil {
		return false, fmt.Errorf("decode event: %w", err)
	}

	verr := pipeline.NewValidationError()
	if e.CallID == "" {
		verr.Add("call_id", msgRequired)
	}
	if e.Kind != KindStart && e.Kind != KindStop {
		verr.Add("kind", fmt.Sprintf("%q is not a valid choice.", e.Kind))
	}
	if e.Timestamp.IsZero() {
		verr.Add("timestamp", msgRequired)
	}
	if !verr.Empty() {
		return false, verr
	}

	s.event = e
	return true, nil
}

func (s *CallService) TransformMessage(context.Context) (any, error) {
	s.update = UpdateFromEvent(s.event)
	return s.update, nil
}

func (s *CallService) PersistData(ctx context.Context) (any, error) {
	if err := s.store.Upsert(ctx, s.update); err != nil {
		return nil, err
	}

	call, err := s.store.Get(ctx, s.update.CallID)
	if err != nil {
		return nil, err
	}
	s.call = call
	return call, nil
}

func (s *CallService) PropagateResult(ctx context.Context) (bool, error) {
	s.SetResult(s.call)

	if !s.call.Complete() {
		return false, nil
	}

	claimed, err := s.store.ClaimCompletion(ctx, s.call.CallID, s.JobID())
	if err != nil {
		return false, err
	}
	if !claimed {
		s.Logger().DebugwCtx(ctx, "Completion already propagated by another job",
			"call_id", s.call.CallID,
		)
		return false, nil
	}

	if err := s.Publish(ctx, s.call); err != nil {
		return false, err
	}
	return true, nil
}

func CallDefinition(store CallStore) (pipeline.Definition, error) {
	return pipeline.Define(constants.CallServiceName, constants.CallTrigger, constants.CallQueue,
		func(base *pipeline.Base) (pipeline.Service, error) {
			return NewCallService(base, store), nil
		})
}
