// Package bootstrap wires the configured stores into repositories.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"devconnector/internal/cache"
	"devconnector/internal/config"
	"devconnector/internal/database"
	"devconnector/internal/middleware"
	"devconnector/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema leaves the SQL schema untouched.
	SkipSchema bool
	// SkipRedis runs without cache, rate-limit store and events.
	SkipRedis bool
}

// Runtime holds the connected stores for one process.
type Runtime struct {
	Posts repository.PostRepository
	Users repository.UserRepository
	Redis *redis.Client
	// DB is the SQL handle; nil when the document store is in use.
	DB *gorm.DB

	mongo *mongo.Client
}

// InitRuntime connects to the store named by cfg.StoreDriver and to Redis.
// Redis is optional: when it is unreachable the repositories run uncached.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.mongo = client
		rt.Posts = repository.NewMongoPostRepository(db)
		rt.Users = repository.NewMongoUserRepository(db)
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		rt.DB = db
		rt.Posts = repository.NewPostRepository(db)
		rt.Users = repository.NewUserRepository(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if !opts.SkipRedis {
		cache.InitRedis(cfg.RedisURL)
		rt.Redis = cache.GetClient()
	}
	rt.Posts = repository.NewCachedPostRepository(rt.Posts)
	rt.Users = repository.NewCachedUserRepository(rt.Users)

	middleware.Logger.Info("runtime ready",
		"store", cfg.StoreDriver,
		"redis", rt.Redis != nil,
	)
	return rt, nil
}

// NewSQLRuntime builds a runtime over an already-open SQL handle. rdb may be nil.
func NewSQLRuntime(db *gorm.DB, rdb *redis.Client) *Runtime {
	return &Runtime{
		DB:    db,
		Redis: rdb,
		Posts: repository.NewCachedPostRepository(repository.NewPostRepository(db)),
		Users: repository.NewCachedUserRepository(repository.NewUserRepository(db)),
	}
}

// PingStore checks the backing document or SQL store.
func (r *Runtime) PingStore(ctx context.Context) error {
	switch {
	case r.mongo != nil:
		return r.mongo.Ping(ctx, readpref.Primary())
	case r.DB != nil:
		sqlDB, err := r.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	default:
		return errors.New("no store configured")
	}
}

// Close releases the store and Redis connections.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.mongo != nil {
		database.DisconnectMongo(ctx, r.mongo)
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close sql db: %w", cerr))
			}
		}
	}
	if r.Redis != nil {
		if rerr := r.Redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}
	return errors.Join(errs...)
}
