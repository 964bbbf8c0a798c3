package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_PopulatesAndHits(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: "1", Text: "from store"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, PostKey("1"), &first, PostTTL, fetch(&first)))
	assert.Equal(t, "from store", first.Text)
	assert.True(t, mr.Exists("post:1"))

	var second cachedThing
	require.NoError(t, Aside(ctx, PostKey("1"), &second, PostTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	ttl := mr.TTL("post:1")
	assert.True(t, ttl > 0 && ttl <= PostTTL)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	boom := errors.New("store down")

	var dest cachedThing
	err := Aside(context.Background(), PostKey("2"), &dest, PostTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:2"))
}

func TestAside_WithoutRedis(t *testing.T) {
	SetClient(nil)

	calls := 0
	var dest cachedThing
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), PostKey("3"), &dest, PostTTL, func() error {
			calls++
			dest = cachedThing{ID: "3"}
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_RedisDownFallsThrough(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})

	var dest cachedThing
	err := Aside(context.Background(), PostKey("4"), &dest, PostTTL, func() error {
		dest = cachedThing{ID: "4"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "4", dest.ID)
}

func TestInvalidatePost(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, PostKey("5"), cachedThing{ID: "5"}, time.Minute))
	require.NoError(t, SetJSON(ctx, PostListKey, []cachedThing{{ID: "5"}}, time.Minute))
	require.NoError(t, SetJSON(ctx, PostKey("6"), cachedThing{ID: "6"}, time.Minute))

	InvalidatePost(ctx, "5")

	assert.False(t, mr.Exists("post:5"))
	assert.False(t, mr.Exists(PostListKey))
	assert.True(t, mr.Exists("post:6"))
}

func TestNewClient_ParsesURL(t *testing.T) {
	rdb, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()
	assert.Equal(t, "localhost:6380", rdb.Options().Addr)
	assert.Equal(t, 2, rdb.Options().DB)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

type versionedThing struct {
	ID      string `json:"id"`
	Version int    `json:"v"`
}

func (v *versionedThing) GetVersion() int { return v.Version }

func TestSetIfNewer(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	key := PostKey("v")

	require.NoError(t, SetIfNewer(ctx, key, &versionedThing{ID: "v", Version: 2}, time.Minute))
	require.NoError(t, SetIfNewer(ctx, key, &versionedThing{ID: "v", Version: 1}, time.Minute))
	require.NoError(t, SetIfNewer(ctx, key, &versionedThing{ID: "v", Version: 2}, time.Minute))

	var got versionedThing
	found, err := GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.Version)

	require.NoError(t, SetIfNewer(ctx, key, &versionedThing{ID: "v", Version: 3}, 2*time.Minute))
	_, err = GetJSON(ctx, key, &got)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, 2*time.Minute, mr.TTL(key))
}

func TestAsideVersioned_FillNeverDowngrades(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()
	key := PostKey("race")

	got, err := AsideVersioned(ctx, key, time.Minute, func() (*versionedThing, error) {
		// a writer stores a newer copy while this read is in flight
		require.NoError(t, SetIfNewer(ctx, key, &versionedThing{ID: "race", Version: 5}, time.Minute))
		return &versionedThing{ID: "race", Version: 4}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Version)

	again, err := AsideVersioned(ctx, key, time.Minute, func() (*versionedThing, error) {
		t.Fatal("expected a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, again.Version)
}

func TestSetIfNewer_WithoutRedis(t *testing.T) {
	SetClient(nil)
	assert.NoError(t, SetIfNewer(context.Background(), PostKey("x"), &versionedThing{Version: 1}, time.Minute))
}
