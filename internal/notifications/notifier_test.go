package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T) *Notifier {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewNotifier(rdb)
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()
	assert.NoError(t, n.PublishUser(ctx, "u1", "x"))
	assert.NoError(t, n.PublishBroadcast(ctx, "x"))
	assert.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishBroadcast(ctx, "x"))
}

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "notifications:user:abc", UserChannel("abc"))
}

func TestEncodeEvent(t *testing.T) {
	msg, err := EncodeEvent("post_created", map[string]string{"_id": "p1"})
	require.NoError(t, err)

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg), &ev))
	assert.Equal(t, "post_created", ev["type"])
	assert.Equal(t, map[string]any{"_id": "p1"}, ev["payload"])

	_, err = EncodeEvent("bad", make(chan int))
	assert.Error(t, err)
}

func TestNotifier_SubscriberReceivesUserAndBroadcast(t *testing.T) {
	n := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type message struct{ channel, payload string }
	got := make(chan message, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- message{channel, payload}
	}))

	require.NoError(t, n.PublishUser(context.Background(), "u1", "hello"))
	require.NoError(t, n.PublishBroadcast(context.Background(), "everyone"))

	seen := map[string]string{}
	for len(seen) < 2 {
		select {
		case m := <-got:
			seen[m.channel] = m.payload
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", seen)
		}
	}
	assert.Equal(t, "hello", seen["notifications:user:u1"])
	assert.Equal(t, "everyone", seen[BroadcastChannel])
}

func TestNotifier_SubscriberSurvivesPanics(t *testing.T) {
	n := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_, payload string) {
		if payload == "boom" {
			panic("handler failed")
		}
		got <- payload
	}))

	require.NoError(t, n.PublishBroadcast(context.Background(), "boom"))
	require.NoError(t, n.PublishBroadcast(context.Background(), "after"))

	select {
	case p := <-got:
		assert.Equal(t, "after", p)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stopped after panic")
	}
}
