//go:build integration

// Package testinfra starts throwaway backing services for integration tests.
package testinfra

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telbill/pkg/migrations"
)

const containerStartupTimeout = 60 * time.Second

type Options struct {
	Postgres bool
	Mongo    bool
	Redis    bool
	Kafka    bool
}

type TestInfra struct {
	PostgresDB   *sql.DB
	PostgresConn string
	MongoDB      *mongo.Database
	MongoClient  *mongo.Client
	RedisClient  *redisclient.Client
	KafkaBrokers []string
}

func SetupTestInfra(t *testing.T) *TestInfra {
	return SetupTestInfraWithOptions(t, Options{Postgres: true, Mongo: true, Redis: true})
}

func SetupTestInfraWithOptions(t *testing.T, opts Options) *TestInfra {
	t.Helper()

	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	infra := &TestInfra{}

	if opts.Postgres {
		setupPostgres(ctx, t, infra)
	}
	if opts.Mongo {
		setupMongo(ctx, t, infra)
	}
	if opts.Redis {
		setupRedis(ctx, t, infra)
	}
	if opts.Kafka {
		setupKafka(ctx, t, infra)
	}

	return infra
}

func setupPostgres(ctx context.Context, t *testing.T, infra *TestInfra) {
	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres uri: %v", err)
	}

	db, err := sql.Open("postgres", conn)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if err := migrations.RunPostgres(db); err != nil {
		_ = db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	infra.PostgresDB = db
	infra.PostgresConn = conn
	t.Cleanup(func() {
		_ = db.Close()
	})
}

func setupMongo(ctx context.Context, t *testing.T, infra *TestInfra) {
	container, err := mongodb.Run(ctx, "mongo:6",
		mongodb.WithUsername("test_user"),
		mongodb.WithPassword("test_password"),
	)
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get mongo uri: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conn))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}

	infra.MongoDB = client.Database("test_db")
	infra.MongoClient = client
	t.Cleanup(func() {
		_ = client.Disconnect(ctx)
	})
}

func setupRedis(ctx context.Context, t *testing.T, infra *TestInfra) {
	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis uri: %v", err)
	}

	opt, err := redisclient.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}

	client := redisclient.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("failed to ping redis: %v", err)
	}

	infra.RedisClient = client
	t.Cleanup(func() {
		_ = client.Close()
	})
}

func setupKafka(ctx context.Context, t *testing.T, infra *TestInfra) {
	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("telbill-test"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka brokers: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal(fmt.Errorf("kafka container reported no brokers"))
	}

	infra.KafkaBrokers = brokers
}
