package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/repository"
	"devconnector/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommentService(posts *testutil.PostRepoStub, users *testutil.UserRepoStub) *CommentService {
	svc := NewCommentService(posts, users, 3)
	svc.now = func() time.Time { return fixedNow }
	n := 0
	svc.newID = func() string {
		n++
		return "c" + string(rune('0'+n))
	}
	return svc
}

func TestCommentService_AddComment_Validation(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := newTestCommentService(posts, users)

	for _, text := range []string{"", "   ", strings.Repeat("x", maxCommentTextLen+1)} {
		_, err := svc.AddComment(context.Background(), AddCommentInput{UserID: bob.ID, PostID: "p1", Text: text})
		requireAppError(t, err, models.CodeValidation, "")
	}
	assert.Equal(t, 0, posts.SaveCalls)
}

func TestCommentService_AddComment_Prepends(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := newTestCommentService(posts, users)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, AddCommentInput{UserID: bob.ID, PostID: "p1", Text: "first"})
	require.NoError(t, err)
	post, err := svc.AddComment(ctx, AddCommentInput{UserID: alice.ID, PostID: "p1", Text: "second"})
	require.NoError(t, err)
	comments := post.Comments

	require.Len(t, comments, 2)
	assert.Equal(t, models.Comment{
		ID: "c2", UserID: alice.ID, Text: "second", Name: "Alice", Avatar: "//avatar/alice", Date: fixedNow,
	}, comments[0])
	assert.Equal(t, "c1", comments[1].ID)
	assert.Equal(t, "Bob", comments[1].Name)
}

func TestCommentService_AddComment_Missing(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := newTestCommentService(posts, users)

	_, err := svc.AddComment(context.Background(), AddCommentInput{UserID: bob.ID, PostID: "gone", Text: "hi"})
	requireAppError(t, err, models.CodeNotFound, "Post not found")

	_, err = svc.AddComment(context.Background(), AddCommentInput{UserID: "ghost", PostID: "p1", Text: "hi"})
	requireAppError(t, err, models.CodeUnauthorized, "User not found")
}

func TestCommentService_AddComment_RetryKeepsCommentID(t *testing.T) {
	posts, users := newStores()
	seedPost(posts, "p1")
	svc := newTestCommentService(posts, users)

	conflicts := 1
	posts.BeforeSave = func(*models.Post) error {
		if conflicts > 0 {
			conflicts--
			return repository.ErrVersionConflict
		}
		return nil
	}

	post, err := svc.AddComment(context.Background(), AddCommentInput{UserID: bob.ID, PostID: "p1", Text: "hi"})
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "c1", post.Comments[0].ID)
}

func TestCommentService_DeleteComment_Ownership(t *testing.T) {
	setup := func() (*CommentService, *testutil.PostRepoStub) {
		posts, users := newStores()
		seedPost(posts, "p1")
		svc := newTestCommentService(posts, users)
		_, err := svc.AddComment(context.Background(), AddCommentInput{UserID: bob.ID, PostID: "p1", Text: "mine"})
		require.NoError(t, err)
		return svc, posts
	}

	t.Run("Non-author gets not found family", func(t *testing.T) {
		svc, posts := setup()

		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: alice.ID, PostID: "p1", CommentID: "c1"})
		requireAppError(t, err, models.CodeNotFound, "User not authorised")

		stored, _ := posts.GetByID(context.Background(), "p1")
		assert.Len(t, stored.Comments, 1)
	})

	t.Run("Missing comment", func(t *testing.T) {
		svc, _ := setup()

		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: bob.ID, PostID: "p1", CommentID: "nope"})
		requireAppError(t, err, models.CodeNotFound, "Comment not found")
	})

	t.Run("Missing post", func(t *testing.T) {
		svc, _ := setup()

		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: bob.ID, PostID: "nope", CommentID: "c1"})
		requireAppError(t, err, models.CodeNotFound, "Post not found")
	})

	t.Run("Author deletes", func(t *testing.T) {
		svc, posts := setup()

		comments, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: bob.ID, PostID: "p1", CommentID: "c1"})
		require.NoError(t, err)
		assert.Empty(t, comments)

		stored, _ := posts.GetByID(context.Background(), "p1")
		assert.Empty(t, stored.Comments)
	})
}
