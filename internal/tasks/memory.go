package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"telbill/internal/pipeline"
)

// MemoryRepository keeps Tasks in process. The worker falls back to it when
// no Redis is configured, which only makes sense for a single process.
type MemoryRepository struct {
	mu    sync.Mutex
	tasks map[string]pipeline.Task
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tasks: make(map[string]pipeline.Task)}
}

func (r *MemoryRepository) Create(_ context.Context, task pipeline.Task) (pipeline.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tasks[task.JobID]; ok {
		return clone(existing), nil
	}
	if len(task.Result) == 0 {
		task.Result = json.RawMessage("null")
	}
	r.tasks[task.JobID] = clone(task)
	return clone(task), nil
}

func (r *MemoryRepository) Get(_ context.Context, jobID string) (pipeline.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[jobID]
	if !ok {
		return pipeline.Task{}, pipeline.ErrTaskNotFound
	}
	return clone(task), nil
}

func (r *MemoryRepository) Transition(_ context.Context, jobID string, from []pipeline.TaskStatus, to pipeline.TaskStatus, result json.RawMessage) (pipeline.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[jobID]
	if !ok {
		return pipeline.Task{}, pipeline.ErrTaskNotFound
	}
	if !slices.Contains(from, task.Status) {
		return pipeline.Task{}, fmt.Errorf("%w: %s to %s", pipeline.ErrInvalidTransition, task.Status, to)
	}

	task.Status = to
	task.UpdatedAt = time.Now().UTC()
	if result != nil {
		task.Result = append(json.RawMessage(nil), result...)
	}
	r.tasks[jobID] = task
	return clone(task), nil
}

func clone(t pipeline.Task) pipeline.Task {
	t.Result = append(json.RawMessage(nil), t.Result...)
	if t.Service != nil {
		s := *t.Service
		t.Service = &s
	}
	return t
}
