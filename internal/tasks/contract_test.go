package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/pipeline"
)

// runStoreContract exercises the behaviour every TaskStore must share.
func runStoreContract(t *testing.T, store pipeline.TaskStore) {
	ctx := context.Background()

	t.Run("create is insert if absent", func(t *testing.T) {
		jobID := uuid.NewString()

		created, err := store.Create(ctx, pipeline.NewTask(jobID, "RegistryService"))
		require.NoError(t, err)
		assert.Equal(t, pipeline.TaskQueued, created.Status)
		require.NotNil(t, created.Service)
		assert.Equal(t, "RegistryService", *created.Service)

		_, err = store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskQueued}, pipeline.TaskStarted, nil)
		require.NoError(t, err)

		again, err := store.Create(ctx, pipeline.NewTask(jobID, "Other"))
		require.NoError(t, err)
		assert.Equal(t, pipeline.TaskStarted, again.Status)
		assert.Equal(t, "RegistryService", *again.Service)
	})

	t.Run("service may be null", func(t *testing.T) {
		task, err := store.Create(ctx, pipeline.NewTask(uuid.NewString(), ""))
		require.NoError(t, err)
		assert.Nil(t, task.Service)

		body, err := json.Marshal(task)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"service":null`)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
	})

	t.Run("transition lifecycle", func(t *testing.T) {
		jobID := uuid.NewString()
		_, err := store.Create(ctx, pipeline.NewTask(jobID, "CallService"))
		require.NoError(t, err)

		_, err = store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskStarted}, pipeline.TaskDone, nil)
		assert.ErrorIs(t, err, pipeline.ErrInvalidTransition)

		_, err = store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskQueued}, pipeline.TaskStarted, nil)
		require.NoError(t, err)

		done, err := store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskStarted}, pipeline.TaskDone, json.RawMessage(`{"call_id":"70"}`))
		require.NoError(t, err)
		assert.Equal(t, pipeline.TaskDone, done.Status)
		assert.JSONEq(t, `{"call_id":"70"}`, string(done.Result))

		_, err = store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskQueued, pipeline.TaskStarted}, pipeline.TaskFailed, nil)
		assert.ErrorIs(t, err, pipeline.ErrInvalidTransition)

		got, err := store.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.TaskDone, got.Status)
	})

	t.Run("transition unknown", func(t *testing.T) {
		_, err := store.Transition(ctx, uuid.NewString(), []pipeline.TaskStatus{pipeline.TaskQueued}, pipeline.TaskStarted, nil)
		assert.ErrorIs(t, err, pipeline.ErrTaskNotFound)
	})

	t.Run("concurrent finish applies once", func(t *testing.T) {
		jobID := uuid.NewString()
		_, err := store.Create(ctx, pipeline.NewTask(jobID, "BillService"))
		require.NoError(t, err)
		_, err = store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskQueued}, pipeline.TaskStarted, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		applied := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Transition(ctx, jobID, []pipeline.TaskStatus{pipeline.TaskStarted}, pipeline.TaskDone, nil); err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, applied)
	})
}
