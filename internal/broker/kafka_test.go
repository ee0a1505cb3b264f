package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/config"
	"telbill/internal/logger"
	"telbill/pkg/logging"
	"telbill/pkg/models"
	"telbill/pkg/retry"
)

type fatalErr struct{}

func (fatalErr) Error() string { return "no such trigger" }
func (fatalErr) IsFatal() bool { return true }

func newTestConsumer() *KafkaConsumer {
	c := NewKafkaConsumer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "test"}, logger.NopLogger())
	c.policy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
	return c
}

func record(t *testing.T, job models.Job) kafka.Message {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestHandleMessage_Success(t *testing.T) {
	c := newTestConsumer()
	job := models.NewJob("registry-service", `{"call_id":"1"}`)

	var seen models.Job
	var jobIDInCtx string
	c.handleMessage(context.Background(), "registry-service", record(t, job), func(ctx context.Context, j models.Job) error {
		seen = j
		jobIDInCtx = logging.GetJobID(ctx)
		return nil
	})

	assert.Equal(t, job.ID, seen.ID)
	assert.Equal(t, job.ID, jobIDInCtx)
}

func TestHandleMessage_RetriesThenDeadLetters(t *testing.T) {
	c := newTestConsumer()
	job := models.NewJob("call-service-done", `{}`)

	attempts := 0
	var hookJob models.Job
	var hookErr error
	c.OnDeadLetter(func(_ context.Context, j models.Job, cause error) {
		hookJob, hookErr = j, cause
	})

	boom := errors.New("postgres down")
	c.handleMessage(context.Background(), "call-service-done", record(t, job), func(context.Context, models.Job) error {
		attempts++
		return boom
	})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, job.ID, hookJob.ID)
	assert.ErrorIs(t, hookErr, boom)
}

func TestHandleMessage_ShutdownDoesNotDeadLetter(t *testing.T) {
	c := newTestConsumer()
	job := models.NewJob("call-service-done", `{}`)

	deadLettered := false
	c.OnDeadLetter(func(context.Context, models.Job, error) {
		deadLettered = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	c.handleMessage(ctx, "call-service-done", record(t, job), func(ctx context.Context, _ models.Job) error {
		attempts++
		cancel()
		return ctx.Err()
	})

	assert.Equal(t, 1, attempts)
	assert.False(t, deadLettered)
}

func TestHandleMessage_FatalIsNotRetried(t *testing.T) {
	c := newTestConsumer()
	job := models.NewJob("unknown", `{}`)

	attempts := 0
	hooked := false
	c.OnDeadLetter(func(context.Context, models.Job, error) { hooked = true })

	c.handleMessage(context.Background(), "unknown", record(t, job), func(context.Context, models.Job) error {
		attempts++
		return fatalErr{}
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, hooked)
}

func TestHandleMessage_PanicIsRecovered(t *testing.T) {
	c := newTestConsumer()
	job := models.NewJob("registry-service", `{}`)

	attempts := 0
	assert.NotPanics(t, func() {
		c.handleMessage(context.Background(), "registry-service", record(t, job), func(context.Context, models.Job) error {
			attempts++
			panic("bad state")
		})
	})
	assert.Equal(t, 1, attempts)
}

func TestHandleMessage_SkipsUndecodableRecords(t *testing.T) {
	c := newTestConsumer()

	called := false
	handler := func(context.Context, models.Job) error {
		called = true
		return nil
	}

	c.handleMessage(context.Background(), "registry-service", kafka.Message{Value: []byte("not json")}, handler)
	c.handleMessage(context.Background(), "registry-service", record(t, models.Job{ID: "not-a-uuid", Message: "{}"}), handler)

	assert.False(t, called)
}

func TestHandleMessage_FillsTriggerFromTopic(t *testing.T) {
	c := newTestConsumer()
	job := models.NewJob("", `{}`)

	var trigger string
	c.handleMessage(context.Background(), "bill-service-done", record(t, job), func(_ context.Context, j models.Job) error {
		trigger = j.Trigger
		return nil
	})
	assert.Equal(t, "bill-service-done", trigger)
}
