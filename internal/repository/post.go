// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostRepository is the document store for posts. A post is read, modified
// and saved whole; likes and comments travel inside it.
type PostRepository interface {
	// GetByID returns ErrNotFound when id does not name a stored post.
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List returns every post, newest first.
	List(ctx context.Context) ([]*models.Post, error)
	// Save inserts a post with an empty ID (assigning one) or replaces a
	// stored post, failing with ErrVersionConflict if it changed meanwhile.
	Save(ctx context.Context, post *models.Post) error
	// Delete returns ErrNotFound when nothing was removed.
	Delete(ctx context.Context, id string) error
}

// postColumns are written on every update; id is the row key.
var postColumns = []string{"user_id", "name", "avatar", "text", "likes", "comments", "date", "version"}

// postRepository implements PostRepository on GORM.
type postRepository struct {
	db      *gorm.DB
	system  string
	metrics *observability.StoreMetrics
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	system := db.Dialector.Name()
	return &postRepository{db: db, system: system, metrics: observability.NewStoreMetrics(system)}
}

func (r *postRepository) GetByID(ctx context.Context, id string) (post *models.Post, err error) {
	ctx, span := observability.StartStoreSpan(ctx, r.system, "get", "posts")
	defer func() { observability.EndSpan(span, ignoreNotFound(err)) }()
	defer r.metrics.TrackOperation("get", "posts")()

	var p models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (r *postRepository) List(ctx context.Context) (posts []*models.Post, err error) {
	ctx, span := observability.StartStoreSpan(ctx, r.system, "list", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer r.metrics.TrackOperation("list", "posts")()

	posts = []*models.Post{}
	if err := r.db.WithContext(ctx).Order("date DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	for _, p := range posts {
		p.Normalize()
	}
	return posts, nil
}

func (r *postRepository) Save(ctx context.Context, post *models.Post) (err error) {
	ctx, span := observability.StartStoreSpan(ctx, r.system, "save", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer r.metrics.TrackOperation("save", "posts")()

	post.Normalize()
	if post.ID == "" {
		return r.create(ctx, post)
	}

	prev := post.Version
	next := *post
	next.Version = prev + 1

	res := r.db.WithContext(ctx).
		Model(&next).
		Where("version = ?", prev).
		Select(postColumns).
		Updates(&next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, post.ID)
	}

	post.Version = next.Version
	return nil
}

func (r *postRepository) create(ctx context.Context, post *models.Post) error {
	post.ID = uuid.NewString()
	post.Version = 0
	if post.Date.IsZero() {
		post.Date = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		post.ID = ""
		return err
	}
	return nil
}

// missOrConflict explains why a versioned update touched no rows.
func (r *postRepository) missOrConflict(ctx context.Context, id string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *postRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, span := observability.StartStoreSpan(ctx, r.system, "delete", "posts")
	defer func() { observability.EndSpan(span, ignoreNotFound(err)) }()
	defer r.metrics.TrackOperation("delete", "posts")()

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ignoreNotFound keeps expected misses out of span error status.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
