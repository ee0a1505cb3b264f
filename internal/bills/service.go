package bills

import (
	"context"
	"fmt"

	"telbill/internal/calls"
	"telbill/internal/constants"
	"telbill/internal/pipeline"
	"telbill/pkg/metrics"
)

const msgStopTooEarly = "The call cannot stop before it starts."

// BillService prices a consolidated call and appends it to its subscriber's
// bill for the month the call started.
type BillService struct {
	*pipeline.Base

	rates Rates
	store BillStore

	charge Charge
}

func NewBillService(base *pipeline.Base, rates Rates, store BillStore) (*BillService, error) {
	if err := rates.Check(); err != nil {
		return nil, err
	}
	return &BillService{Base: base, rates: rates, store: store}, nil
}

func (s *BillService) ObtainMessage(context.Context) error {
	return nil
}

type callInput struct {
	CallID         string `json:"call_id" validate:"required"`
	Source         string `json:"source" validate:"required"`
	Destination    string `json:"destination" validate:"required"`
	StartTimestamp string `json:"start_timestamp" validate:"required,timestamp"`
	StopTimestamp  string `json:"stop_timestamp" validate:"required,timestamp"`
}

func (s *BillService) ValidateMessage(context.Context) (bool, error) {
	// An incomplete call carries null timestamps; those read as missing.
	p, verr := calls.DecodePayload(s.Message(), "Invalid data. Expected a consolidated call.", true)
	if verr != nil {
		return false, verr
	}

	in := callInput{
		CallID:         p.CallID(),
		Source:         p.String("source"),
		Destination:    p.String("destination"),
		StartTimestamp: p.String("start_timestamp"),
		StopTimestamp:  p.String("stop_timestamp"),
	}
	if verr := p.Check(in); verr != nil {
		return false, verr
	}

	start, _ := calls.ParseTimestamp(in.StartTimestamp)
	stop, _ := calls.ParseTimestamp(in.StopTimestamp)
	if stop.Before(start) {
		verr := pipeline.NewValidationError()
		verr.Add("stop_timestamp", msgStopTooEarly)
		return false, verr
	}

	s.charge = Charge{
		CallID:         in.CallID,
		Subscriber:     in.Source,
		Destination:    in.Destination,
		StartTimestamp: start,
		StopTimestamp:  stop,
	}
	return true, nil
}

func (s *BillService) TransformMessage(context.Context) (any, error) {
	d := s.charge.StopTimestamp.Sub(s.charge.StartTimestamp)
	s.charge.CallDuration = Duration(d)
	s.charge.CallPrice = s.rates.Price(d)
	return s.charge, nil
}

func (s *BillService) PersistData(ctx context.Context) (any, error) {
	appended, err := s.store.AppendCall(ctx, s.charge)
	if err != nil {
		return nil, fmt.Errorf("append call %s to bill: %w", s.charge.CallID, err)
	}
	if appended {
		metrics.IncBillLineItem("appended")
	} else {
		metrics.IncBillLineItem("duplicate")
		s.Logger().InfowCtx(ctx, "Call already billed",
			"call_id", s.charge.CallID,
			"subscriber", s.charge.Subscriber,
			"period", s.charge.Period().Key(),
		)
	}
	return s.charge, nil
}

// PropagateResult publishes the priced call under a queue nothing consumes
// yet, so the chain stays open for later stages.
func (s *BillService) PropagateResult(ctx context.Context) (bool, error) {
	if err := s.Publish(ctx, s.charge); err != nil {
		return false, err
	}
	return true, nil
}

// BillDefinition fails with a ConfigurationError unless both rates are set.
func BillDefinition(rates Rates, store BillStore) (pipeline.Definition, error) {
	if err := rates.Check(); err != nil {
		return pipeline.Definition{}, err
	}
	return pipeline.Define(constants.BillServiceName, constants.BillTrigger, constants.BillQueue,
		func(base *pipeline.Base) (pipeline.Service, error) {
			svc, err := NewBillService(base, rates, store)
			if err != nil {
				return nil, err
			}
			return svc, nil
		})
}
