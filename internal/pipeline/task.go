package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type TaskStatus string

const (
	TaskQueued  TaskStatus = "queued"
	TaskStarted TaskStatus = "started"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskQueued, TaskStarted, TaskDone, TaskFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Task is the lifecycle record of one job.
type Task struct {
	JobID     string          `json:"job_id"`
	Service   *string         `json:"service"`
	Status    TaskStatus      `json:"status"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewTask(jobID, service string) Task {
	now := time.Now().UTC()
	t := Task{
		JobID:     jobID,
		Status:    TaskQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if service != "" {
		t.Service = &service
	}
	return t
}

// TaskStore persists Tasks. Implementations must make Create and Transition
// atomic per job id.
type TaskStore interface {
	// Create stores task unless a task with the same job id exists, and
	// returns whichever task is stored afterwards.
	Create(ctx context.Context, task Task) (Task, error)
	Get(ctx context.Context, jobID string) (Task, error)
	// Transition moves the task to status "to" only when its current status
	// is one of from, replacing the result when result is non-nil.
	// Otherwise it returns ErrInvalidTransition.
	Transition(ctx context.Context, jobID string, from []TaskStatus, to TaskStatus, result json.RawMessage) (Task, error)
}
