package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/internal/logger"
	"telbill/pkg/errors"
	"telbill/pkg/logging"
	"telbill/pkg/metrics"
	"telbill/pkg/models"
	"telbill/pkg/retry"
	"telbill/pkg/tracing"
)

const (
	headerDLQReason      = "dlq_reason"
	headerDLQSourceTopic = "dlq_source_topic"
	headerDLQTimestamp   = "dlq_timestamp"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, job models.Job) error {
	return p.write(ctx, topic, job, nil)
}

func (p *KafkaProducer) write(ctx context.Context, topic string, job models.Job, extra []kafka.Header) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, extra)

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(job.ID),
			Value:   body,
			Headers: headers,
			Time:    start,
		},
	)
	metrics.ObserveKafkaWriteDuration(logging.GetServiceName(ctx), topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(logging.GetServiceName(ctx), topic)
	p.logger.DebugwCtx(ctx, "Job published",
		"topic", topic,
		"job_id", job.ID,
	)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	policy      retry.Policy
	wg          sync.WaitGroup
	mu          sync.Mutex
	readers     []*kafka.Reader
	logger      logger.Logger
	dlqProducer *KafkaProducer
	deadLetter  DeadLetterFunc
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		policy:      retry.PolicyFromConfig(cfg.Retry),
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) OnDeadLetter(hook DeadLetterFunc) {
	c.deadLetter = hook
}

// Consume blocks until ctx is done, handing every job read from topic to
// handler. It may be called concurrently for different topics.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", topic)

		for {
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || stderrors.Is(err, io.EOF) {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "reader closed",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(constants.KafkaFetchBackoff)
				continue
			}

			metrics.IncKafkaMessagesRead(c.serviceName, topic)
			c.handleMessage(consumeCtx, topic, m, handler)

			if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
					"error", err,
					"topic", topic,
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// handleMessage decodes and processes a single record. Every outcome ends
// with the record committed, except a job cut short by shutdown: it is left
// uncommitted for redelivery and never dead-lettered.
func (c *KafkaConsumer) handleMessage(ctx context.Context, topic string, m kafka.Message, handler HandlerFunc) {
	var job models.Job
	if err := json.Unmarshal(m.Value, &job); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to unmarshal job",
			"error", err,
			"topic", topic,
		)
		return
	}
	if job.Trigger == "" {
		job.Trigger = topic
	}
	if err := models.ValidateJob(&job); err != nil {
		c.logger.ErrorwCtx(ctx, "Discarding invalid job",
			"error", err,
			"topic", topic,
		)
		return
	}

	msgCtx, span := tracing.StartJobSpan(ctx, topic, job.ID, m.Headers)
	defer span.End()

	traceID := job.TraceID
	if traceID == "" {
		traceID = tracing.TraceIDFromContext(msgCtx)
	}
	msgCtx = logging.WithTraceID(msgCtx, traceID)
	msgCtx = logging.WithJobID(msgCtx, job.ID)
	msgCtx = logging.WithTrigger(msgCtx, topic)

	err := c.processWithRetry(msgCtx, job, handler, topic)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		c.logger.WarnwCtx(msgCtx, "Job interrupted by shutdown, leaving it for redelivery",
			"error", err,
			"topic", topic,
		)
		return
	}

	span.RecordError(err)
	c.logger.ErrorwCtx(msgCtx, "Failed to process job after retries",
		"error", err,
		"topic", topic,
	)

	if c.deadLetter != nil {
		c.deadLetter(msgCtx, job, err)
	}

	if c.dlqProducer == nil || c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(msgCtx, "No DLQ configured, committing message to avoid blocking",
			"topic", topic,
		)
		return
	}

	if dlqErr := c.sendToDLQ(msgCtx, job, err, topic); dlqErr != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to send job to DLQ",
			"error", dlqErr,
			"topic", topic,
		)
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, job models.Job, handler HandlerFunc, topic string) error {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during job processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, job)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying job processing",
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, job models.Job, originalErr error, sourceTopic string) error {
	reason := "max_retries_exceeded"
	if errors.IsFatal(originalErr) {
		reason = "fatal"
	}

	headers := []kafka.Header{
		{Key: headerDLQReason, Value: []byte(originalErr.Error())},
		{Key: headerDLQSourceTopic, Value: []byte(sourceTopic)},
		{Key: headerDLQTimestamp, Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
	}

	if err := c.dlqProducer.write(ctx, c.cfg.DLQTopic, job, headers); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, reason).Inc()
	c.logger.InfowCtx(ctx, "Job sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", originalErr.Error(),
	)

	return nil
}

func (c *KafkaConsumer) Close() error {
	var err error

	c.mu.Lock()
	for _, r := range c.readers {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.readers = nil
	c.mu.Unlock()

	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	c.wg.Wait()
	return err
}
