package cache

import (
	"context"
	"strings"
	"time"
)

const (
	PostKeyPrefix = "post:"
	UserKeyPrefix = "user:"
	PostListKey   = "posts:all"
)

const (
	PostTTL = 30 * time.Minute
	UserTTL = 5 * time.Minute
	ListTTL = time.Minute
	// TombstoneTTL covers reads that started before a delete.
	TombstoneTTL = time.Minute
)

func PostKey(postID string) string {
	return PostKeyPrefix + postID
}

func UserKey(userID string) string {
	return UserKeyPrefix + userID
}

// keyFamily strips the id from a key so metrics stay low-cardinality.
func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidatePost drops the cached post and the cached listing.
func InvalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, PostKey(postID), PostListKey)
}
