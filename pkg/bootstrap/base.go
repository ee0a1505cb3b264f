package bootstrap

import (
	"context"
	"fmt"

	"telbill/internal/broker"
	"telbill/internal/config"
	"telbill/internal/logger"
)

// Base holds what every telbill binary shares: config, logger and the
// broker clients it opened.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitProducer() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return nil
}

// InitBroker opens a producer and a consumer. The worker needs both: it
// consumes triggers and publishes to queues.
func (b *Base) InitBroker(serviceName string) error {
	if err := b.InitProducer(); err != nil {
		return err
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		b.Producer.Close()
		b.Producer = nil
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Consumer = consumer
	return nil
}

// Publisher wraps the producer for pipeline stages and HTTP handlers.
func (b *Base) Publisher() *broker.JobPublisher {
	return broker.NewJobPublisher(b.Producer)
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down application")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
