// Package pipeline runs messages through chained services. Each service
// accepts jobs under its trigger and publishes its result under its queue,
// which is the trigger of the next service.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"telbill/internal/logger"
	"telbill/pkg/models"
)

const (
	msgTriggerRequired = "A trigger must be a string and it is needed to accept any task."
	msgQueueRequired   = "A queue must be a string and it is needed to propagate the results."
)

var errNoPublisher = errors.New("no publisher configured")

// Service is the stage contract every pipeline service fulfils. Only types
// embedding *Base satisfy it.
type Service interface {
	Trigger() string
	Queue() string

	ObtainMessage(ctx context.Context) error
	// ValidateMessage returns false, or an error, to reject the message.
	// A rejected message fails its Task and is not retried.
	ValidateMessage(ctx context.Context) (bool, error)
	TransformMessage(ctx context.Context) (any, error)
	PersistData(ctx context.Context) (any, error)
	// PropagateResult reports whether a job was published to Queue().
	PropagateResult(ctx context.Context) (bool, error)

	base() *Base
}

// Publisher enqueues a job under its trigger.
type Publisher interface {
	Publish(ctx context.Context, job models.Job) error
}

// Env holds the collaborators shared by every service run.
type Env struct {
	Tasks     TaskStore
	Publisher Publisher
	Logger    logger.Logger
}

type BaseOption func(*Base)

// WithJobID binds the Base to an existing job; by default a new id is drawn.
func WithJobID(jobID string) BaseOption {
	return func(b *Base) { b.jobID = jobID }
}

// WithServiceName sets the name recorded on the Task.
func WithServiceName(name string) BaseOption {
	return func(b *Base) { b.name = name }
}

// Base carries the per-run state of a service: its identifiers, the raw
// message, the Task and the result that is persisted on it.
type Base struct {
	trigger string
	queue   string
	message string
	jobID   string
	name    string

	task   Task
	result any
	env    Env
}

func NewBase(trigger, queue, message string, env Env, opts ...BaseOption) (*Base, error) {
	if trigger == "" {
		return nil, &ConfigurationError{Field: "trigger", Message: msgTriggerRequired}
	}
	if queue == "" {
		return nil, &ConfigurationError{Field: "queue", Message: msgQueueRequired}
	}
	if env.Tasks == nil {
		return nil, &ConfigurationError{Field: "tasks", Message: "A task store is needed to track every job."}
	}
	if env.Logger == nil {
		env.Logger = logger.NopLogger()
	}

	b := &Base{
		trigger: trigger,
		queue:   queue,
		message: message,
		env:     env,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.jobID == "" {
		b.jobID = uuid.NewString()
	}
	return b, nil
}

func (b *Base) base() *Base { return b }

func (b *Base) Trigger() string { return b.trigger }

func (b *Base) Queue() string { return b.queue }

func (b *Base) Message() string { return b.message }

func (b *Base) JobID() string { return b.jobID }

func (b *Base) Task() Task { return b.task }

func (b *Base) Logger() logger.Logger { return b.env.Logger }

func (b *Base) Result() any { return b.result }

func (b *Base) SetResult(result any) { b.result = result }

// Publish sets payload as the run's result and enqueues it as a new job
// under Queue(). Strings and byte slices are sent verbatim, anything else is
// JSON encoded.
func (b *Base) Publish(ctx context.Context, payload any) error {
	if b.env.Publisher == nil {
		return errNoPublisher
	}

	msg, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	b.result = payload
	job := models.NewJob(b.queue, msg)
	if err := b.env.Publisher.Publish(ctx, job); err != nil {
		return fmt.Errorf("publish to %s: %w", b.queue, err)
	}

	b.env.Logger.DebugwCtx(ctx, "Result propagated",
		"queue", b.queue,
		"next_job_id", job.ID,
	)
	return nil
}

// StartTask makes sure the Task exists and marks it started. Starting an
// already started Task is allowed so a retried job can run again.
func (b *Base) StartTask(ctx context.Context) error {
	if _, err := b.env.Tasks.Create(ctx, NewTask(b.jobID, b.name)); err != nil {
		return fmt.Errorf("create task %s: %w", b.jobID, err)
	}

	task, err := b.env.Tasks.Transition(ctx, b.jobID, []TaskStatus{TaskQueued, TaskStarted}, TaskStarted, nil)
	if err != nil {
		return fmt.Errorf("start task %s: %w", b.jobID, err)
	}
	b.task = task
	return nil
}

// FinishTask stores the current result and moves the Task to done or failed.
func (b *Base) FinishTask(ctx context.Context, failed bool) error {
	result, err := encodeResult(b.result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	to := TaskDone
	if failed {
		to = TaskFailed
	}

	task, err := b.env.Tasks.Transition(ctx, b.jobID, []TaskStatus{TaskStarted}, to, result)
	if err != nil {
		return fmt.Errorf("finish task %s: %w", b.jobID, err)
	}
	b.task = task
	return nil
}

func encodePayload(payload any) (string, error) {
	switch p := payload.(type) {
	case string:
		return p, nil
	case []byte:
		return string(p), nil
	case json.RawMessage:
		return string(p), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// encodeResult keeps JSON text as-is and encodes everything else. Plain
// strings that are not JSON are stored as JSON strings.
func encodeResult(result any) (json.RawMessage, error) {
	switch r := result.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		return r, nil
	case string:
		if json.Valid([]byte(r)) {
			return json.RawMessage(r), nil
		}
	case []byte:
		if json.Valid(r) {
			return json.RawMessage(r), nil
		}
		result = string(r)
	}
	return json.Marshal(result)
}
