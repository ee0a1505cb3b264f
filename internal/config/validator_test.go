package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: 10, WriteTimeoutSeconds: 10},
		Broker: BrokerConfig{
			Type: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "telbill",
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: time.Second,
					MaxInterval:     30 * time.Second,
					Multiplier:      2,
				},
			},
		},
		Billing: BillingConfig{StandingCharge: "0.36", CallCharge: "0.09"},
	}
}

func TestValidateStatic_Valid(t *testing.T) {
	assert.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStatic_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "rabbitmq" }, "broker.type"},
		{"no brokers", func(c *Config) { c.Broker.Kafka.Brokers = nil }, "broker.kafka.brokers"},
		{"bad standing charge", func(c *Config) { c.Billing.StandingCharge = "abc" }, "billing.standing_charge"},
		{"negative call charge", func(c *Config) { c.Billing.CallCharge = "-0.01" }, "billing.call_charge"},
		{"empty rule", func(c *Config) { c.Ingest.Rules = []IngestRuleConfig{{Name: "r"}} }, "ingest.rules[0].expression"},
		{"negative ttl", func(c *Config) { c.Tasks.TTLSeconds = -1 }, "tasks.ttl_seconds"},
		{"mongo scheme", func(c *Config) { c.Database.MongoDB = MongoDBConfig{URI: "http://x", Database: "d"} }, "database.mongodb.uri"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
broker:
  kafka:
    brokers: ["kafka:9092"]
    group_id: workers
billing:
  standing_charge: "0.36"
  call_charge: "0.09"
pipeline:
  triggers: ["registry-service"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("BILLING_CALL_CHARGE", "0.10")
	t.Setenv("PIPELINE_TRIGGERS", "registry-service, call-service-done")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "0.36", cfg.Billing.StandingCharge)
	assert.Equal(t, "0.10", cfg.Billing.CallCharge)
	assert.Equal(t, []string{"registry-service", "call-service-done"}, cfg.Pipeline.Triggers)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 86400, cfg.Tasks.TTLSeconds)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
