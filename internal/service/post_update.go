package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"devconnector/internal/middleware"
	"devconnector/internal/models"
	"devconnector/internal/observability"
	"devconnector/internal/repository"
)

// DefaultSaveAttempts bounds read-modify-write retries when no limit is configured.
const DefaultSaveAttempts = 3

// postNotFound maps a store miss to the client-facing 404.
func postNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return models.NewNotFoundError("Post")
	}
	return err
}

// requireText validates a text body: required after trimming, at most max runes.
func requireText(text string, max int, tooLong string) error {
	if strings.TrimSpace(text) == "" {
		return models.NewFieldValidationError("text", "Text is required")
	}
	if utf8.RuneCountInString(text) > max {
		return models.NewFieldValidationError("text", tooLong)
	}
	return nil
}

// lookupAuthor resolves the requesting user for denormalised name/avatar.
func lookupAuthor(ctx context.Context, users repository.UserRepository, userID string) (*models.User, error) {
	user, err := users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewUnauthorizedError("User not found")
	}
	return user, err
}

// updatePost reads the post, applies mutate and saves it, repeating the
// whole cycle when another writer got there first. mutate must be safe to
// run more than once.
func updatePost(
	ctx context.Context,
	posts repository.PostRepository,
	maxAttempts int,
	op, postID string,
	mutate func(*models.Post) error,
) (*models.Post, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultSaveAttempts
	}

	for attempt := 1; ; attempt++ {
		post, err := posts.GetByID(ctx, postID)
		if err != nil {
			return nil, postNotFound(err)
		}
		if err := mutate(post); err != nil {
			return nil, err
		}

		err = posts.Save(ctx, post)
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, postNotFound(err)
		}

		observability.SaveConflicts.WithLabelValues(op).Inc()
		if attempt >= maxAttempts {
			return nil, models.NewConflictError("Post was modified concurrently, please retry", err)
		}
		middleware.Logger.DebugContext(ctx, "post save conflict, retrying",
			slog.String("op", op),
			slog.String("post_id", postID),
			slog.Int("attempt", attempt),
		)
	}
}
