package repository

import (
	"context"
	"errors"
	"math"

	"devconnector/internal/cache"
	"devconnector/internal/models"
	"devconnector/internal/observability"
)

// deletedVersion marks a tombstone left in the post key after a delete. It
// outranks every real version, so a fill racing the delete is refused.
const deletedVersion = math.MaxInt32

// cachedPostRepository puts a Redis cache-aside layer in front of a
// PostRepository. Saves write the new version through, deletes leave a
// short tombstone, and both drop the listing.
type cachedPostRepository struct {
	inner PostRepository
}

// NewCachedPostRepository wraps inner with the shared Redis cache. With no
// Redis client configured it behaves exactly like inner.
func NewCachedPostRepository(inner PostRepository) PostRepository {
	return &cachedPostRepository{inner: inner}
}

func (r *cachedPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := cache.AsideVersioned[models.Post](ctx, cache.PostKey(id), cache.PostTTL, func() (*models.Post, error) {
		return r.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if post.Version == deletedVersion {
		return nil, ErrNotFound
	}
	post.Normalize()
	return post, nil
}

func (r *cachedPostRepository) List(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	err := cache.Aside(ctx, cache.PostListKey, &posts, cache.ListTTL, func() error {
		var err error
		posts, err = r.inner.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	for _, p := range posts {
		p.Normalize()
	}
	return posts, nil
}

func (r *cachedPostRepository) Save(ctx context.Context, post *models.Post) error {
	err := r.inner.Save(ctx, post)
	switch {
	case err == nil:
		r.store(ctx, post)
	case errors.Is(err, ErrVersionConflict):
		// a stale cached copy would make every retry conflict again
		observability.CacheRefreshes.WithLabelValues("version_conflict").Inc()
		if fresh, getErr := r.inner.GetByID(ctx, post.ID); getErr == nil {
			r.store(ctx, fresh)
		} else {
			cache.InvalidatePost(ctx, post.ID)
		}
	}
	return err
}

func (r *cachedPostRepository) Delete(ctx context.Context, id string) error {
	err := r.inner.Delete(ctx, id)
	if err == nil || errors.Is(err, ErrNotFound) {
		tomb := &models.Post{ID: id, Version: deletedVersion}
		if setErr := cache.SetIfNewer[models.Post](ctx, cache.PostKey(id), tomb, cache.TombstoneTTL); setErr != nil {
			cache.InvalidatePost(ctx, id)
			return err
		}
		cache.Invalidate(ctx, cache.PostListKey)
	}
	return err
}

func (r *cachedPostRepository) store(ctx context.Context, post *models.Post) {
	if err := cache.SetIfNewer[models.Post](ctx, cache.PostKey(post.ID), post, cache.PostTTL); err != nil {
		// fall back to dropping the entry so the next read refills it
		cache.InvalidatePost(ctx, post.ID)
		return
	}
	cache.Invalidate(ctx, cache.PostListKey)
}

// cachedUserRepository caches user lookups by id.
type cachedUserRepository struct {
	UserRepository
}

// NewCachedUserRepository wraps inner's GetByID with the shared Redis cache.
func NewCachedUserRepository(inner UserRepository) UserRepository {
	return &cachedUserRepository{UserRepository: inner}
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := r.UserRepository.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
