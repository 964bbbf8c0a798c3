package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostService() (*PostService, func() (int, *models.Post)) {
	posts, users := newStores()
	svc := NewPostService(posts, users, 3)
	svc.now = func() time.Time { return fixedNow }
	inspect := func() (int, *models.Post) {
		p, _ := posts.GetByID(context.Background(), "p1")
		return posts.Len(), p
	}
	seedPost(posts, "p1")
	return svc, inspect
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{"empty", "", "Text is required"},
		{"whitespace only", " \n\t ", "Text is required"},
		{"too long", strings.Repeat("é", maxPostTextLen+1), "Text too long (max 50000 characters)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, inspect := newTestPostService()

			_, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: alice.ID, Text: tt.text})
			appErr := requireAppError(t, err, models.CodeValidation, "")
			require.Len(t, appErr.Fields, 1)
			assert.Equal(t, tt.msg, appErr.Fields[0].Msg)
			assert.Equal(t, "text", appErr.Fields[0].Param)

			count, _ := inspect()
			assert.Equal(t, 1, count)
		})
	}
}

func TestPostService_CreatePost_CopiesAuthor(t *testing.T) {
	svc, inspect := newTestPostService()

	post, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: bob.ID, Text: "first!"})
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, bob.ID, post.UserID)
	assert.Equal(t, "Bob", post.Name)
	assert.Equal(t, "//avatar/bob", post.Avatar)
	assert.Equal(t, "first!", post.Text)
	assert.Equal(t, fixedNow, post.Date)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)
	assert.Equal(t, 0, post.Version)

	count, _ := inspect()
	assert.Equal(t, 2, count)
}

func TestPostService_CreatePost_UnknownUser(t *testing.T) {
	svc, _ := newTestPostService()

	_, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: "ghost", Text: "boo"})
	requireAppError(t, err, models.CodeUnauthorized, "User not found")
}

func TestPostService_GetPost(t *testing.T) {
	svc, _ := newTestPostService()

	post, err := svc.GetPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Text)

	_, err = svc.GetPost(context.Background(), "missing")
	requireAppError(t, err, models.CodeNotFound, "Post not found")
}

func TestPostService_ListPosts_NewestFirst(t *testing.T) {
	posts, users := newStores()
	svc := NewPostService(posts, users, 3)
	old := seedPost(posts, "old")
	newer := &models.Post{ID: "new", UserID: bob.ID, Text: "later", Date: old.Date.Add(time.Hour)}
	posts.Put(newer)

	list, err := svc.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestPostService_DeletePost_Ownership(t *testing.T) {
	t.Run("Non-author is rejected", func(t *testing.T) {
		svc, inspect := newTestPostService()

		_, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: bob.ID, PostID: "p1"})
		requireAppError(t, err, models.CodeUnauthorized, "User not authorised")

		count, _ := inspect()
		assert.Equal(t, 1, count)
	})

	t.Run("Author deletes", func(t *testing.T) {
		svc, inspect := newTestPostService()

		deleted, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: alice.ID, PostID: "p1"})
		require.NoError(t, err)
		assert.Equal(t, "p1", deleted.ID)

		count, _ := inspect()
		assert.Equal(t, 0, count)
	})

	t.Run("Missing post", func(t *testing.T) {
		svc, _ := newTestPostService()

		_, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: alice.ID, PostID: "nope"})
		requireAppError(t, err, models.CodeNotFound, "Post not found")
	})
}

func TestPostService_LikeUnlike(t *testing.T) {
	svc, inspect := newTestPostService()
	ctx := context.Background()

	post, err := svc.LikePost(ctx, LikeInput{UserID: bob.ID, PostID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []models.Like{{UserID: bob.ID}}, post.Likes)

	post, err = svc.LikePost(ctx, LikeInput{UserID: alice.ID, PostID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []models.Like{{UserID: alice.ID}, {UserID: bob.ID}}, post.Likes)
	assert.Equal(t, "p1", post.ID)

	_, err = svc.LikePost(ctx, LikeInput{UserID: bob.ID, PostID: "p1"})
	requireAppError(t, err, models.CodeBadRequest, "Post already liked")

	_, stored := inspect()
	assert.Len(t, stored.Likes, 2)

	post, err = svc.UnlikePost(ctx, LikeInput{UserID: bob.ID, PostID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []models.Like{{UserID: alice.ID}}, post.Likes)

	_, err = svc.UnlikePost(ctx, LikeInput{UserID: bob.ID, PostID: "p1"})
	requireAppError(t, err, models.CodeBadRequest, "Post has not yet been liked")

	_, err = svc.LikePost(ctx, LikeInput{UserID: bob.ID, PostID: "missing"})
	requireAppError(t, err, models.CodeNotFound, "Post not found")
}

func TestPostService_Like_RetriesOnConflict(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := NewPostService(posts, users, 3)

	// a concurrent writer likes the post between our read and our save
	raced := false
	posts.BeforeSave = func(*models.Post) error {
		if raced {
			return nil
		}
		raced = true
		return repository.ErrVersionConflict
	}

	post, err := svc.LikePost(context.Background(), LikeInput{UserID: bob.ID, PostID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []models.Like{{UserID: bob.ID}}, post.Likes)
	assert.Equal(t, 2, posts.SaveCalls)
}

func TestPostService_Like_GivesUpAfterMaxAttempts(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := NewPostService(posts, users, 2)
	posts.BeforeSave = func(*models.Post) error { return repository.ErrVersionConflict }

	_, err := svc.LikePost(context.Background(), LikeInput{UserID: bob.ID, PostID: "p1"})
	requireAppError(t, err, models.CodeConflict, "")
	assert.True(t, errors.Is(err, repository.ErrVersionConflict))
	assert.Equal(t, 2, posts.SaveCalls)
}

func TestPostService_Like_StoreErrorPassesThrough(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := NewPostService(posts, users, 3)
	boom := errors.New("disk on fire")
	posts.BeforeSave = func(*models.Post) error { return boom }

	_, err := svc.LikePost(context.Background(), LikeInput{UserID: bob.ID, PostID: "p1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, posts.SaveCalls)
}
