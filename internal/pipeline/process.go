package pipeline

import (
	"context"
	"errors"
	"time"

	"telbill/pkg/metrics"
)

const nonFieldErrors = "non_field_errors"

// Process runs the stages of svc in order and stops at the first failure.
//
// A rejected message fails the Task with the validation details as result
// and Process returns nil. Any other stage error is returned unchanged and
// leaves the Task started, so the job can be retried.
func Process(ctx context.Context, svc Service) error {
	b := svc.base()
	log := b.env.Logger
	start := time.Now()

	status := "error"
	defer func() {
		metrics.ObservePipelineJob(b.serviceLabel(), status, time.Since(start))
	}()

	if err := b.StartTask(ctx); err != nil {
		return err
	}

	if err := svc.ObtainMessage(ctx); err != nil {
		return err
	}

	ok, err := svc.ValidateMessage(ctx)
	if err != nil || !ok {
		b.result = validationPayload(b.result, err)
		log.InfowCtx(ctx, "Message rejected",
			"trigger", b.trigger,
			"result", b.result,
		)
		status = "rejected"
		return b.FinishTask(ctx, true)
	}

	if _, err := svc.TransformMessage(ctx); err != nil {
		return err
	}

	if _, err := svc.PersistData(ctx); err != nil {
		return err
	}

	propagated, err := svc.PropagateResult(ctx)
	if err != nil {
		return err
	}
	if propagated {
		metrics.IncPropagation(b.serviceLabel(), b.queue)
	}

	if err := b.FinishTask(ctx, false); err != nil {
		return err
	}

	status = "done"
	log.DebugwCtx(ctx, "Job processed",
		"trigger", b.trigger,
		"propagated", propagated,
		"duration", time.Since(start),
	)
	return nil
}

func (b *Base) serviceLabel() string {
	if b.name != "" {
		return b.name
	}
	return b.trigger
}

// validationPayload picks what a failed Task records: field errors when the
// service reported them, otherwise whatever result the service already set.
func validationPayload(current any, err error) any {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	if err != nil {
		return map[string][]string{nonFieldErrors: {err.Error()}}
	}
	if current != nil {
		return current
	}
	return map[string][]string{nonFieldErrors: {"message rejected"}}
}
