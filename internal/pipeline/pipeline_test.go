package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/pipeline"
	"telbill/internal/tasks"
	"telbill/pkg/models"
)

type memoryPublisher struct {
	mu   sync.Mutex
	jobs []models.Job
	err  error
}

func (p *memoryPublisher) Publish(_ context.Context, job models.Job) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

// echoService records the stages it went through and publishes the message
// unchanged unless told otherwise.
type echoService struct {
	*pipeline.Base

	stages      []string
	valid       bool
	validateErr error
	persistErr  error
	publish     bool
}

func (s *echoService) ObtainMessage(context.Context) error {
	s.stages = append(s.stages, "obtain")
	return nil
}

func (s *echoService) ValidateMessage(context.Context) (bool, error) {
	s.stages = append(s.stages, "validate")
	return s.valid, s.validateErr
}

func (s *echoService) TransformMessage(context.Context) (any, error) {
	s.stages = append(s.stages, "transform")
	return s.Message(), nil
}

func (s *echoService) PersistData(context.Context) (any, error) {
	s.stages = append(s.stages, "persist")
	return nil, s.persistErr
}

func (s *echoService) PropagateResult(ctx context.Context) (bool, error) {
	s.stages = append(s.stages, "propagate")
	if !s.publish {
		s.SetResult(s.Message())
		return false, nil
	}
	return true, s.Publish(ctx, s.Message())
}

func newEnv() (pipeline.Env, *tasks.MemoryRepository, *memoryPublisher) {
	store := tasks.NewMemoryRepository()
	pub := &memoryPublisher{}
	return pipeline.Env{Tasks: store, Publisher: pub}, store, pub
}

func TestNewBase_RequiresIdentifiers(t *testing.T) {
	env, _, _ := newEnv()

	_, err := pipeline.NewBase("", "q", "{}", env)
	var cfgErr *pipeline.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "A trigger must be a string and it is needed to accept any task.", err.Error())

	_, err = pipeline.NewBase("t", "", "{}", env)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "A queue must be a string and it is needed to propagate the results.", err.Error())

	_, err = pipeline.NewBase("t", "q", "{}", pipeline.Env{})
	require.ErrorAs(t, err, &cfgErr)
}

func TestProcess_RunsStagesInOrder(t *testing.T) {
	env, store, pub := newEnv()
	base, err := pipeline.NewBase("in", "out", `{"a":1}`, env, pipeline.WithServiceName("Echo"))
	require.NoError(t, err)

	svc := &echoService{Base: base, valid: true, publish: true}
	require.NoError(t, pipeline.Process(context.Background(), svc))

	assert.Equal(t, []string{"obtain", "validate", "transform", "persist", "propagate"}, svc.stages)

	require.Len(t, pub.jobs, 1)
	assert.Equal(t, "out", pub.jobs[0].Trigger)
	assert.Equal(t, `{"a":1}`, pub.jobs[0].Message)
	assert.NotEqual(t, base.JobID(), pub.jobs[0].ID)

	task, err := store.Get(context.Background(), base.JobID())
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskDone, task.Status)
	assert.JSONEq(t, `{"a":1}`, string(task.Result))
	assert.Equal(t, "Echo", *task.Service)
}

func TestProcess_DoneWithoutPropagation(t *testing.T) {
	env, store, pub := newEnv()
	base, err := pipeline.NewBase("in", "out", `{"a":1}`, env)
	require.NoError(t, err)

	require.NoError(t, pipeline.Process(context.Background(), &echoService{Base: base, valid: true}))

	assert.Empty(t, pub.jobs)
	task, err := store.Get(context.Background(), base.JobID())
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskDone, task.Status)
}

func TestProcess_RejectedMessageFailsTask(t *testing.T) {
	tests := []struct {
		name        string
		validateErr error
		wantResult  string
	}{
		{
			name:        "field errors",
			validateErr: &pipeline.ValidationError{Fields: map[string][]string{"call_id": {"This field is required."}}},
			wantResult:  `{"call_id":["This field is required."]}`,
		},
		{
			name:        "plain error",
			validateErr: errors.New("not json"),
			wantResult:  `{"non_field_errors":["not json"]}`,
		},
		{
			name:       "false without error",
			wantResult: `{"non_field_errors":["message rejected"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, store, pub := newEnv()
			base, err := pipeline.NewBase("in", "out", `{}`, env)
			require.NoError(t, err)

			svc := &echoService{Base: base, validateErr: tt.validateErr, publish: true}
			require.NoError(t, pipeline.Process(context.Background(), svc))

			assert.Equal(t, []string{"obtain", "validate"}, svc.stages)
			assert.Empty(t, pub.jobs)

			task, err := store.Get(context.Background(), base.JobID())
			require.NoError(t, err)
			assert.Equal(t, pipeline.TaskFailed, task.Status)
			assert.JSONEq(t, tt.wantResult, string(task.Result))
		})
	}
}

func TestProcess_StageErrorLeavesTaskStarted(t *testing.T) {
	env, store, _ := newEnv()
	base, err := pipeline.NewBase("in", "out", `{}`, env)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	svc := &echoService{Base: base, valid: true, persistErr: boom, publish: true}

	err = pipeline.Process(context.Background(), svc)
	assert.Same(t, boom, err)
	assert.Equal(t, []string{"obtain", "validate", "transform", "persist"}, svc.stages)

	task, err := store.Get(context.Background(), base.JobID())
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskStarted, task.Status)

	// A retry of the same job runs again and finishes the Task.
	svc = &echoService{Base: base, valid: true, publish: true}
	require.NoError(t, pipeline.Process(context.Background(), svc))
	task, err = store.Get(context.Background(), base.JobID())
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskDone, task.Status)
}

func TestProcess_PublishFailureIsReturned(t *testing.T) {
	env, store, pub := newEnv()
	pub.err = errors.New("broker unavailable")
	base, err := pipeline.NewBase("in", "out", `{}`, env)
	require.NoError(t, err)

	err = pipeline.Process(context.Background(), &echoService{Base: base, valid: true, publish: true})
	assert.ErrorIs(t, err, pub.err)

	task, err := store.Get(context.Background(), base.JobID())
	require.NoError(t, err)
	assert.Equal(t, pipeline.TaskStarted, task.Status)
}

func TestBase_ResultEncoding(t *testing.T) {
	env, store, _ := newEnv()
	ctx := context.Background()

	cases := []struct {
		result any
		want   string
	}{
		{nil, `null`},
		{`{"x":1}`, `{"x":1}`},
		{"plain text", `"plain text"`},
		{map[string]int{"n": 2}, `{"n":2}`},
		{json.RawMessage(`[1,2]`), `[1,2]`},
	}

	for _, c := range cases {
		base, err := pipeline.NewBase("in", "out", "", env)
		require.NoError(t, err)
		require.NoError(t, base.StartTask(ctx))
		base.SetResult(c.result)
		require.NoError(t, base.FinishTask(ctx, false))

		task, err := store.Get(ctx, base.JobID())
		require.NoError(t, err)
		assert.JSONEq(t, c.want, string(task.Result))
	}
}

func TestBase_FinishTwiceIsRejected(t *testing.T) {
	env, _, _ := newEnv()
	ctx := context.Background()

	base, err := pipeline.NewBase("in", "out", "", env)
	require.NoError(t, err)
	require.NoError(t, base.StartTask(ctx))
	require.NoError(t, base.FinishTask(ctx, false))

	assert.ErrorIs(t, base.FinishTask(ctx, true), pipeline.ErrInvalidTransition)
	assert.ErrorIs(t, base.StartTask(ctx), pipeline.ErrInvalidTransition)
	assert.Equal(t, pipeline.TaskDone, base.Task().Status)
}
