package broker

import (
	"context"
	"fmt"

	"telbill/pkg/logging"
	"telbill/pkg/models"
	"telbill/pkg/tracing"
)

// JobPublisher enqueues jobs on the topic named after their trigger.
type JobPublisher struct {
	producer Producer
}

func NewJobPublisher(producer Producer) *JobPublisher {
	return &JobPublisher{producer: producer}
}

func (p *JobPublisher) Publish(ctx context.Context, job models.Job) error {
	if job.TraceID == "" {
		job.TraceID = logging.GetTraceID(ctx)
	}
	if job.TraceID == "" {
		job.TraceID = tracing.TraceIDFromContext(ctx)
	}

	if err := models.ValidateJob(&job); err != nil {
		return fmt.Errorf("refusing to publish job: %w", err)
	}

	return p.producer.Publish(ctx, job.Trigger, job)
}
