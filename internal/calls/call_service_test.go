package calls

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/constants"
	"telbill/internal/pipeline"
	"telbill/pkg/models"
)

const (
	startEvent = `{"call_id": "70", "kind": "start", "timestamp": "2016-02-29T12:00:00Z", "source": "99988526423", "destination": "9993468278"}`
	stopEvent  = `{"call_id": "70", "kind": "stop", "timestamp": "2016-02-29T14:00:00Z"}`
)

func newCallDispatcher(t *testing.T, store CallStore) (*pipeline.Dispatcher, pipeline.TaskStore, *memoryPublisher) {
	t.Helper()
	env, tasks, pub := testEnv()
	def, err := CallDefinition(store)
	require.NoError(t, err)
	reg, err := pipeline.NewRegistry(def)
	require.NoError(t, err)
	return pipeline.NewDispatcher(reg, env), tasks, pub
}

func decodeCall(t *testing.T, job models.Job) Call {
	t.Helper()
	var c Call
	require.NoError(t, json.Unmarshal([]byte(job.Message), &c))
	return c
}

func TestCallService_ConsolidatesInEitherOrder(t *testing.T) {
	orders := map[string][]string{
		"start then stop": {startEvent, stopEvent},
		"stop then start": {stopEvent, startEvent},
	}

	for name, events := range orders {
		t.Run(name, func(t *testing.T) {
			d, _, pub := newCallDispatcher(t, newMemoryCallStore())

			require.NoError(t, d.Dispatch(context.Background(), events[0], constants.CallTrigger))
			assert.Empty(t, pub.published())

			require.NoError(t, d.Dispatch(context.Background(), events[1], constants.CallTrigger))

			jobs := pub.published()
			require.Len(t, jobs, 1)
			assert.Equal(t, constants.CallQueue, jobs[0].Trigger)

			call := decodeCall(t, jobs[0])
			assert.Equal(t, "70", call.CallID)
			assert.Equal(t, "99988526423", *call.Source)
			assert.Equal(t, "9993468278", *call.Destination)
			assert.Equal(t, time.Date(2016, 2, 29, 12, 0, 0, 0, time.UTC), call.StartTimestamp.UTC())
			assert.Equal(t, time.Date(2016, 2, 29, 14, 0, 0, 0, time.UTC), call.StopTimestamp.UTC())
		})
	}
}

func TestCallService_IncompleteCallIsDoneWithoutPropagation(t *testing.T) {
	d, tasks, pub := newCallDispatcher(t, newMemoryCallStore())

	job := models.NewJob(constants.CallTrigger, startEvent)
	require.NoError(t, d.DispatchJob(context.Background(), job))

	assert.Empty(t, pub.published())
	task, err := tasks.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskDone, task.Status)

	var stored Call
	require.NoError(t, json.Unmarshal(task.Result, &stored))
	assert.Nil(t, stored.StopTimestamp)
}

func TestCallService_DuplicateStartKeepsSinglePropagation(t *testing.T) {
	store := newMemoryCallStore()
	d, _, pub := newCallDispatcher(t, store)

	for _, msg := range []string{startEvent, startEvent, stopEvent, stopEvent, startEvent} {
		require.NoError(t, d.Dispatch(context.Background(), msg, constants.CallTrigger))
	}

	assert.Len(t, pub.published(), 1)
}

func TestCallService_CompletedCallIgnoresLateUpdates(t *testing.T) {
	store := newMemoryCallStore()
	d, _, _ := newCallDispatcher(t, store)

	require.NoError(t, d.Dispatch(context.Background(), startEvent, constants.CallTrigger))
	require.NoError(t, d.Dispatch(context.Background(), stopEvent, constants.CallTrigger))
	require.NoError(t, d.Dispatch(context.Background(),
		`{"call_id": "70", "kind": "stop", "timestamp": "2016-02-29T18:00:00Z"}`, constants.CallTrigger))

	call, err := store.Get(context.Background(), "70")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 2, 29, 14, 0, 0, 0, time.UTC), call.StopTimestamp.UTC())
}

func TestCallService_ConcurrentHalvesPropagateOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		store := newMemoryCallStore()
		d, _, pub := newCallDispatcher(t, store)

		var wg sync.WaitGroup
		for _, msg := range []string{startEvent, stopEvent} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, d.Dispatch(context.Background(), msg, constants.CallTrigger))
			}()
		}
		wg.Wait()

		require.Len(t, pub.published(), 1)
	}
}

func TestCallService_RetryOfClaimingJobRepublishes(t *testing.T) {
	store := newMemoryCallStore()
	d, tasks, pub := newCallDispatcher(t, store)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, startEvent, constants.CallTrigger))

	pub.err = assert.AnError
	stopJob := models.NewJob(constants.CallTrigger, stopEvent)
	require.ErrorIs(t, d.DispatchJob(ctx, stopJob), assert.AnError)

	task, err := tasks.Get(ctx, stopJob.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskStarted, task.Status)

	// A different job for the same call cannot take over the claim.
	pub.err = nil
	require.NoError(t, d.Dispatch(ctx, stopEvent, constants.CallTrigger))
	assert.Empty(t, pub.published())

	// The runtime redelivers the claiming job and it publishes.
	require.NoError(t, d.DispatchJob(ctx, stopJob))
	assert.Len(t, pub.published(), 1)
}

func TestCallService_StoreFailureIsRetryable(t *testing.T) {
	store := newMemoryCallStore()
	store.err = assert.AnError
	d, tasks, _ := newCallDispatcher(t, store)

	job := models.NewJob(constants.CallTrigger, startEvent)
	assert.ErrorIs(t, d.DispatchJob(context.Background(), job), assert.AnError)

	task, err := tasks.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskStarted, task.Status)
}

func TestCallService_RejectsUndecodableEvent(t *testing.T) {
	d, tasks, _ := newCallDispatcher(t, newMemoryCallStore())

	job := models.NewJob(constants.CallTrigger, `{"call_id": "70", "kind": "hold"}`)
	require.NoError(t, d.DispatchJob(context.Background(), job))

	task, err := tasks.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskFailed, task.Status)
	assert.JSONEq(t, `{"kind": ["\"hold\" is not a valid choice."], "timestamp": ["This field is required."]}`, string(task.Result))
}
