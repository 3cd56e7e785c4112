package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Options selects and configures a workflow store backend.
type Options struct {
	Driver string
	// DSN is a redis:// URL or host:port, a SQLite file path, a Postgres
	// connection string or a mongodb:// URI depending on Driver.
	DSN string

	// Prefix namespaces Redis keys.
	Prefix string

	// Database and Collection apply to the Mongo driver.
	Database   string
	Collection string

	// CacheSize > 0 wraps the backend in a CachedWorkflowStore.
	CacheSize int
	CacheTTL  time.Duration
}

// Persistence bundles the workflow store with the resources backing it so
// the process can release them on shutdown.
type Persistence struct {
	Workflows WorkflowStore

	closers []func() error
}

// Close releases backend connections.
func (p *Persistence) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects to the backend named in opts.Driver.
func Open(ctx context.Context, opts Options) (*Persistence, error) {
	p := &Persistence{}

	switch strings.ToLower(opts.Driver) {
	case "", DriverMemory:
		p.Workflows = NewInMemoryStore()

	case DriverRedis:
		client, err := NewRedisClient(opts.DSN)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		p.Workflows = NewRedisWorkflowStore(client, opts.Prefix)

	case DriverSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = "opsflow.db"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, err := NewSQLiteWorkflowStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
		p.closers = append(p.closers, db.Close)
		p.Workflows = store

	case DriverPostgres:
		db, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		store, err := NewPostgresWorkflowStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
		p.closers = append(p.closers, db.Close)
		p.Workflows = store

	case DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.DSN))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		p.closers = append(p.closers, func() error {
			return client.Disconnect(context.Background())
		})
		p.Workflows = NewMongoWorkflowStore(client, opts.Database, opts.Collection)

	default:
		return nil, fmt.Errorf("persistence: unknown store driver %q", opts.Driver)
	}

	if opts.CacheSize > 0 {
		p.Workflows = NewCachedWorkflowStore(p.Workflows, opts.CacheSize, opts.CacheTTL)
	}
	return p, nil
}

// NewRedisClient builds a client from a redis:// URL or a plain host:port.
func NewRedisClient(dsn string) (*redis.Client, error) {
	if dsn == "" {
		dsn = "localhost:6379"
	}
	if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
		opt, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: dsn}), nil
}
