package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/lib/pq" // PostgreSQL driver

	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/internal/logger"
	"telbill/internal/pipeline"
	"telbill/internal/tasks"
	"telbill/pkg/migrations"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// InitRedis returns nil when no Redis host is configured.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.InfowCtx(ctx, "Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pg := dc.Config.Database.Postgres
	if pg.Host == "" {
		return nil, fmt.Errorf("database.postgres.host is required")
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pg.User,
		pg.Password,
		pg.Host,
		pg.Port,
		pg.DBName,
		pg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dc.Logger.InfowCtx(ctx, "PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	if dc.Config.Database.MongoDB.URI == "" {
		return nil, fmt.Errorf("database.mongodb.uri is required")
	}

	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.InfowCtx(ctx, "MongoDB connected successfully")
	return mongoClient, nil
}

func (dc *DatabaseConnector) MongoDatabase(client *mongo.Client) *mongo.Database {
	name := dc.Config.Database.MongoDB.Database
	if name == "" {
		name = constants.DefaultMongoDBName
	}
	return client.Database(name)
}

// Migrate applies the Postgres migrations and the bill indexes when
// database.run_migrations is set. Either handle may be nil.
func (dc *DatabaseConnector) Migrate(ctx context.Context, db *sql.DB, mongoDB *mongo.Database) error {
	if !dc.Config.Database.RunMigrations {
		return nil
	}

	if db != nil {
		if err := migrations.RunPostgres(db); err != nil {
			return err
		}
		dc.Logger.InfowCtx(ctx, "PostgreSQL migrations applied")
	}

	if mongoDB != nil {
		if err := migrations.EnsureBillIndexes(ctx, mongoDB, constants.BillsCollection); err != nil {
			return err
		}
		dc.Logger.InfowCtx(ctx, "MongoDB indexes ensured")
	}

	return nil
}

// TaskStore keeps Tasks in Redis. Without Redis the Tasks live in process
// memory, which only suits a single binary running everything.
func (dc *DatabaseConnector) TaskStore(ctx context.Context, rdb *redis.Client) pipeline.TaskStore {
	if rdb == nil {
		dc.Logger.WarnwCtx(ctx, "Redis not configured, tasks are kept in memory")
		return tasks.NewMemoryRepository()
	}

	ttl := constants.DefaultTaskTTL
	if dc.Config.Tasks.TTLSeconds > 0 {
		ttl = time.Duration(dc.Config.Tasks.TTLSeconds) * time.Second
	}
	return tasks.NewRedisRepository(rdb, ttl)
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redis *redis.Client, postgres *sql.DB, mongo *mongo.Client) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if postgres != nil {
		if err := postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if mongo != nil {
		if err := mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
