package broker

import (
	"context"

	"telbill/pkg/models"
)

// Producer writes jobs to the topic named by the caller.
type Producer interface {
	Publish(ctx context.Context, topic string, job models.Job) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	// OnDeadLetter registers a hook that runs once a job has exhausted its
	// retries, before it is forwarded to the dead-letter topic.
	OnDeadLetter(hook DeadLetterFunc)
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, job models.Job) error

type DeadLetterFunc func(ctx context.Context, job models.Job, cause error)
