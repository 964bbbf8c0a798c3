package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"devconnector/internal/middleware"
	"devconnector/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first and on a miss calls fetch, which must populate
// dest, then stores dest with ttl. Cache failures never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	family := keyFamily(key)

	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if found {
		observability.CacheLookups.WithLabelValues(family, "hit").Inc()
		return nil
	}
	observability.CacheLookups.WithLabelValues(family, "miss").Inc()

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return nil
}

// Versioned is a pointer to a cached value carrying a version that grows
// with every write.
type Versioned[T any] interface {
	*T
	GetVersion() int
}

// AsideVersioned is Aside for versioned values. The fill goes through
// SetIfNewer, so a reader that fetched before a concurrent write can never
// replace the newer cached copy.
func AsideVersioned[T any, PT Versioned[T]](ctx context.Context, key string, ttl time.Duration, fetch func() (PT, error)) (PT, error) {
	family := keyFamily(key)

	cached := PT(new(T))
	found, err := GetJSON(ctx, key, cached)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if found {
		observability.CacheLookups.WithLabelValues(family, "hit").Inc()
		return cached, nil
	}
	observability.CacheLookups.WithLabelValues(family, "miss").Inc()

	fresh, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := SetIfNewer[T, PT](ctx, key, fresh, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return fresh, nil
}

// SetIfNewer stores v unless the key already holds a version at least as
// new. The check and the write run in one WATCH transaction; losing the
// race to another writer leaves that writer's value in place.
func SetIfNewer[T any, PT Versioned[T]](ctx context.Context, key string, v PT, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	err = client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current := PT(new(T))
			if json.Unmarshal(raw, current) == nil && current.GetVersion() >= v.GetVersion() {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}
