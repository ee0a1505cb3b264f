package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"telbill/internal/logger"
	"telbill/pkg/logging"
	"telbill/pkg/models"
)

// Dispatcher routes jobs to the service registered for their trigger.
type Dispatcher struct {
	registry *Registry
	env      Env
}

func NewDispatcher(registry *Registry, env Env) *Dispatcher {
	if env.Logger == nil {
		env.Logger = logger.NopLogger()
	}
	return &Dispatcher{registry: registry, env: env}
}

// Dispatch runs message through the service accepting trigger as a new job.
func (d *Dispatcher) Dispatch(ctx context.Context, message, trigger string) error {
	return d.DispatchJob(ctx, models.NewJob(trigger, message))
}

// DispatchJob runs an enqueued job. The job's Task is created when missing;
// a job whose Task already finished is acknowledged without running again.
func (d *Dispatcher) DispatchJob(ctx context.Context, job models.Job) error {
	if d.registry == nil || d.registry.Len() == 0 {
		return &DispatchError{Trigger: job.Trigger, Err: ErrNoImplementationsRegistered}
	}

	def, ok := d.registry.Lookup(job.Trigger)
	if !ok {
		return &DispatchError{Trigger: job.Trigger, Err: ErrUnknownTrigger}
	}

	ctx = logging.WithServiceName(ctx, def.Name)
	ctx = logging.WithJobID(ctx, job.ID)

	task, err := d.env.Tasks.Create(ctx, NewTask(job.ID, def.Name))
	if err != nil {
		return fmt.Errorf("ensure task %s: %w", job.ID, err)
	}
	if task.Status.Terminal() {
		d.env.Logger.InfowCtx(ctx, "Skipping finished job",
			"trigger", job.Trigger,
			"status", task.Status,
		)
		return nil
	}

	base, err := NewBase(def.Trigger, def.Queue, job.Message, d.env,
		WithJobID(job.ID),
		WithServiceName(def.Name),
	)
	if err != nil {
		return err
	}

	svc, err := def.Factory(base)
	if err != nil {
		return fmt.Errorf("build %s: %w", def.Name, err)
	}

	return Process(ctx, svc)
}

// Abandon fails the Task of a job the queue runtime gave up on.
func (d *Dispatcher) Abandon(ctx context.Context, job models.Job, cause error) {
	result, _ := json.Marshal(map[string][]string{nonFieldErrors: {cause.Error()}})

	_, err := d.env.Tasks.Transition(ctx, job.ID, []TaskStatus{TaskQueued, TaskStarted}, TaskFailed, result)
	switch {
	case err == nil:
		d.env.Logger.WarnwCtx(ctx, "Job abandoned",
			"trigger", job.Trigger,
			"error", cause,
		)
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrInvalidTransition):
		// Unroutable jobs never got a Task and finished ones keep their status.
	default:
		d.env.Logger.ErrorwCtx(ctx, "Failed to mark abandoned job",
			"error", err,
		)
	}
}
