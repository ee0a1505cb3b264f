package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PipelineJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_total",
			Help: "Total number of jobs processed by a pipeline service (count)",
		},
		[]string{"service", "status"},
	)

	PipelineJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_job_duration_ms",
			Help:    "Processing duration of a pipeline job in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "status"},
	)

	PipelinePropagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_propagations_total",
			Help: "Total number of results propagated to the next queue (count)",
		},
		[]string{"service", "queue"},
	)

	TaskTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_transitions_total",
			Help: "Total number of task status transitions (count)",
		},
		[]string{"to", "status"},
	)

	BillLineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bill_line_items_total",
			Help: "Total number of priced calls recorded on bills (count)",
		},
		[]string{"status"},
	)

	IngestRuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rule_evaluations_total",
			Help: "Total number of ingest rule evaluations (count)",
		},
		[]string{"rule", "result"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"database", "operation"},
	)
)

var (
	pipelineOnce       sync.Once
	brokerOnce         sync.Once
	circuitBreakerOnce sync.Once
	apiOnce            sync.Once
)

func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(PipelineJobsTotal)
		prometheus.MustRegister(PipelineJobDuration)
		prometheus.MustRegister(PipelinePropagationsTotal)
		prometheus.MustRegister(TaskTransitionsTotal)
		prometheus.MustRegister(BillLineItemsTotal)
		prometheus.MustRegister(IngestRuleEvaluationsTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
		prometheus.MustRegister(KafkaMessagesReadTotal)
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
		prometheus.MustRegister(KafkaWriteDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterAPIMetrics() {
	apiOnce.Do(func() {
		prometheus.MustRegister(RateLimitRequestsTotal)
	})
}

func ObservePipelineJob(service, status string, duration time.Duration) {
	PipelineJobsTotal.WithLabelValues(service, status).Inc()
	PipelineJobDuration.WithLabelValues(service, status).Observe(float64(duration.Milliseconds()))
}

func IncPropagation(service, queue string) {
	PipelinePropagationsTotal.WithLabelValues(service, queue).Inc()
}

func IncTaskTransition(to, status string) {
	TaskTransitionsTotal.WithLabelValues(to, status).Inc()
}

func IncBillLineItem(status string) {
	BillLineItemsTotal.WithLabelValues(status).Inc()
}

func IncIngestRuleEvaluation(rule, result string) {
	IngestRuleEvaluationsTotal.WithLabelValues(rule, result).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveDatabaseQuery(database, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(database, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(database, operation).Observe(float64(duration.Milliseconds()))
}
