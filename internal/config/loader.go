package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvVariables(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", "10s")
	v.SetDefault("server.write_timeout_seconds", "10s")
	v.SetDefault("broker.type", "kafka")
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "1s")
	v.SetDefault("broker.kafka.retry.max_interval", "30s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("tasks.ttl_seconds", 86400)
}

func bindEnvVariables(v *viper.Viper) error {
	bindings := map[string]string{
		"broker.kafka.brokers":   "BROKER_KAFKA_BROKERS",
		"broker.kafka.group_id":  "BROKER_KAFKA_GROUP_ID",
		"broker.kafka.dlq_topic": "BROKER_KAFKA_DLQ_TOPIC",

		"database.postgres.host":     "DATABASE_POSTGRES_HOST",
		"database.postgres.port":     "DATABASE_POSTGRES_PORT",
		"database.postgres.user":     "DATABASE_POSTGRES_USER",
		"database.postgres.password": "DATABASE_POSTGRES_PASSWORD",
		"database.postgres.dbname":   "DATABASE_POSTGRES_DBNAME",
		"database.postgres.sslmode":  "DATABASE_POSTGRES_SSLMODE",
		"database.run_migrations":    "DATABASE_RUN_MIGRATIONS",

		"database.redis.host":     "DATABASE_REDIS_HOST",
		"database.redis.port":     "DATABASE_REDIS_PORT",
		"database.redis.password": "DATABASE_REDIS_PASSWORD",
		"database.redis.db":       "DATABASE_REDIS_DB",

		"database.mongodb.uri":      "DATABASE_MONGODB_URI",
		"database.mongodb.database": "DATABASE_MONGODB_DATABASE",

		"billing.standing_charge": "BILLING_STANDING_CHARGE",
		"billing.call_charge":     "BILLING_CALL_CHARGE",

		"server.port":                  "SERVER_PORT",
		"server.read_timeout_seconds":  "SERVER_READ_TIMEOUT_SECONDS",
		"server.write_timeout_seconds": "SERVER_WRITE_TIMEOUT_SECONDS",

		"logging.level":  "LOGGING_LEVEL",
		"logging.format": "LOGGING_FORMAT",

		"tracing.otlp.endpoint": "TRACING_OTLP_ENDPOINT",
		"tracing.otlp.insecure": "TRACING_OTLP_INSECURE",
		"tracing.enabled":       "TRACING_ENABLED",
		"tracing.service_name":  "TRACING_SERVICE_NAME",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// applyEnvOverrides handles values viper cannot split on its own.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := splitList(brokersEnv)
		if len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if triggersEnv := v.GetString("PIPELINE_TRIGGERS"); triggersEnv != "" {
		cfg.Pipeline.Triggers = splitList(triggersEnv)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
