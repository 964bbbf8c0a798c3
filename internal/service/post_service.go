package service

import (
	"context"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/repository"
)

const maxPostTextLen = 50000

type PostService struct {
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	maxAttempts int
	now         func() time.Time
}

type CreatePostInput struct {
	UserID string
	Text   string
}

type DeletePostInput struct {
	UserID string
	PostID string
}

// LikeInput identifies who likes or unlikes which post.
type LikeInput struct {
	UserID string
	PostID string
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	maxAttempts int,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		userRepo:    userRepo,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreatePost stores a new post authored by in.UserID, copying the author's
// current name and avatar onto it.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := requireText(in.Text, maxPostTextLen, "Text too long (max 50000 characters)"); err != nil {
		return nil, err
	}

	user, err := lookupAuthor(ctx, s.userRepo, in.UserID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:   user.ID,
		Name:     user.Name,
		Avatar:   user.Avatar,
		Text:     in.Text,
		Likes:    []models.Like{},
		Comments: []models.Comment{},
		Date:     s.now(),
	}
	if err := s.postRepo.Save(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns every post, newest first.
func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	return s.postRepo.List(ctx)
}

func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, postNotFound(err)
	}
	return post, nil
}

// DeletePost removes a post. Only its author may do so.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, postNotFound(err)
	}

	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("User not authorised")
	}

	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return nil, postNotFound(err)
	}
	return post, nil
}

// LikePost prepends the user's like and returns the updated post.
func (s *PostService) LikePost(ctx context.Context, in LikeInput) (*models.Post, error) {
	post, err := updatePost(ctx, s.postRepo, s.maxAttempts, "like", in.PostID, func(p *models.Post) error {
		if p.LikedBy(in.UserID) {
			return models.NewBadRequestError("Post already liked")
		}
		p.AddLike(in.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UnlikePost removes the user's like and returns the updated post.
func (s *PostService) UnlikePost(ctx context.Context, in LikeInput) (*models.Post, error) {
	post, err := updatePost(ctx, s.postRepo, s.maxAttempts, "unlike", in.PostID, func(p *models.Post) error {
		if !p.RemoveLike(in.UserID) {
			return models.NewBadRequestError("Post has not yet been liked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}
