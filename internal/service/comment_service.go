package service

import (
	"context"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/repository"

	"github.com/google/uuid"
)

const maxCommentTextLen = 10000

type CommentService struct {
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	maxAttempts int
	now         func() time.Time
	newID       func() string
}

type AddCommentInput struct {
	UserID string
	PostID string
	Text   string
}

type DeleteCommentInput struct {
	UserID    string
	PostID    string
	CommentID string
}

func NewCommentService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	maxAttempts int,
) *CommentService {
	return &CommentService{
		postRepo:    postRepo,
		userRepo:    userRepo,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// AddComment prepends a comment by in.UserID and returns the updated post.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Post, error) {
	if err := requireText(in.Text, maxCommentTextLen, "Comment too long (max 10000 characters)"); err != nil {
		return nil, err
	}

	user, err := lookupAuthor(ctx, s.userRepo, in.UserID)
	if err != nil {
		return nil, err
	}

	// built once so a retried save keeps the same comment id
	comment := models.Comment{
		ID:     s.newID(),
		UserID: user.ID,
		Text:   in.Text,
		Name:   user.Name,
		Avatar: user.Avatar,
		Date:   s.now(),
	}

	post, err := updatePost(ctx, s.postRepo, s.maxAttempts, "add_comment", in.PostID, func(p *models.Post) error {
		p.AddComment(comment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// DeleteComment removes the named comment. Only the comment's author may
// do so; other users get the same 404 family as a missing comment.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) ([]models.Comment, error) {
	post, err := updatePost(ctx, s.postRepo, s.maxAttempts, "delete_comment", in.PostID, func(p *models.Post) error {
		comment := p.FindComment(in.CommentID)
		if comment == nil {
			return models.NewNotFoundError("Comment")
		}
		if comment.UserID != in.UserID {
			return &models.AppError{Code: models.CodeNotFound, Message: "User not authorised"}
		}
		p.RemoveComment(in.CommentID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Comments, nil
}
