//go:build integration

package main

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/bills"
	"telbill/internal/broker"
	"telbill/internal/calls"
	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/internal/logger"
	"telbill/internal/pipeline"
	"telbill/internal/tasks"
	"telbill/internal/testinfra"
	"telbill/pkg/migrations"
	"telbill/pkg/models"
)

const messageWaitTimeout = 60 * time.Second

func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	}
	require.NoError(t, cconn.CreateTopics(configs...))
}

func TestPipelineEndToEnd(t *testing.T) {
	infra := testinfra.SetupTestInfraWithOptions(t, testinfra.Options{Postgres: true, Mongo: true, Redis: true, Kafka: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, migrations.EnsureBillIndexes(ctx, infra.MongoDB, constants.BillsCollection))
	createTopics(t, infra.KafkaBrokers,
		constants.RegistryTrigger, constants.CallTrigger, constants.BillTrigger, constants.BillQueue)

	cfg := testConfig()
	cfg.Broker = config.BrokerConfig{
		Type: "kafka",
		Kafka: config.KafkaConfig{
			Brokers: infra.KafkaBrokers,
			GroupID: "telbill-e2e",
			Retry:   config.RetryConfig{MaxAttempts: 2, InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2},
		},
	}

	log := logger.NopLogger()
	callRepo := calls.NewRepository(infra.PostgresDB)
	billRepo := bills.NewRepository(infra.MongoDB)
	taskStore := tasks.NewRedisRepository(infra.RedisClient, time.Hour)

	registry, err := buildRegistry(cfg, serviceDeps{callStore: callRepo, registryStore: callRepo, billStore: billRepo})
	require.NoError(t, err)

	producer, err := broker.NewProducer(cfg.Broker, log)
	require.NoError(t, err)
	defer producer.Close()
	publisher := broker.NewJobPublisher(producer)

	consumer, err := broker.NewConsumer(cfg.Broker, log)
	require.NoError(t, err)
	defer consumer.Close()

	dispatcher := pipeline.NewDispatcher(registry, pipeline.Env{Tasks: taskStore, Publisher: publisher, Logger: log})
	consumer.OnDeadLetter(dispatcher.Abandon)

	for _, trigger := range registry.Triggers() {
		go consumer.Consume(ctx, trigger, dispatcher.DispatchJob)
	}

	start := models.NewJob(constants.RegistryTrigger,
		`{"call_id": 70, "kind": "start", "timestamp": "2016-02-29T12:00:00Z", "source": "99988526423", "destination": "9993468278"}`)
	stop := models.NewJob(constants.RegistryTrigger,
		`{"call_id": 70, "kind": "stop", "timestamp": "2016-02-29T12:08:00Z"}`)
	invalid := models.NewJob(constants.RegistryTrigger, `{"call_id": 71, "kind": "start"}`)

	for _, job := range []models.Job{stop, start, invalid} {
		_, err := taskStore.Create(ctx, pipeline.NewTask(job.ID, constants.RegistryServiceName))
		require.NoError(t, err)
		require.NoError(t, publisher.Publish(ctx, job))
	}

	period := bills.Period{Year: 2016, Month: time.February}
	require.Eventually(t, func() bool {
		bill, err := billRepo.Get(ctx, "99988526423", period)
		return err == nil && len(bill.Calls) == 1
	}, messageWaitTimeout, 500*time.Millisecond, "the consolidated call should reach the bill")

	bill, err := billRepo.Get(ctx, "99988526423", period)
	require.NoError(t, err)
	assert.Equal(t, "70", bill.Calls[0].CallID)
	assert.Equal(t, "0h8m0s", bill.Calls[0].CallDuration.String())
	assert.Equal(t, "1.08", bill.Calls[0].CallPrice.StringFixed(2))

	require.Eventually(t, func() bool {
		task, err := taskStore.Get(ctx, invalid.ID)
		return err == nil && task.Status == pipeline.TaskFailed
	}, messageWaitTimeout, 500*time.Millisecond, "an invalid event should fail its task")

	for _, job := range []models.Job{start, stop} {
		task, err := taskStore.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.TaskDone, task.Status)
	}
}
