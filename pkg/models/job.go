package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is the envelope the queue runtime carries between pipeline services.
// Message is the raw JSON text handed to the service registered for Trigger.
type Job struct {
	ID         string    `json:"job_id"`
	Trigger    string    `json:"trigger"`
	Message    string    `json:"message"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

func NewJob(trigger, message string) Job {
	return NewJobBuilder().
		WithTrigger(trigger).
		WithMessage(message).
		Build()
}

type JobBuilder struct {
	job Job
}

func NewJobBuilder() *JobBuilder {
	return &JobBuilder{}
}

func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

func (b *JobBuilder) WithTrigger(trigger string) *JobBuilder {
	b.job.Trigger = trigger
	return b
}

func (b *JobBuilder) WithMessage(message string) *JobBuilder {
	b.job.Message = message
	return b
}

func (b *JobBuilder) WithTraceID(traceID string) *JobBuilder {
	b.job.TraceID = traceID
	return b
}

func (b *JobBuilder) WithEnqueuedAt(t time.Time) *JobBuilder {
	b.job.EnqueuedAt = t
	return b
}

// Build fills a fresh job id and enqueue time when they were not set.
func (b *JobBuilder) Build() Job {
	job := b.job
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return job
}
