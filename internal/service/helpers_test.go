package service

import (
	"errors"
	"testing"
	"time"

	"devconnector/internal/models"
	"devconnector/internal/testutil"

	"github.com/stretchr/testify/require"
)

var (
	alice = models.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com", Avatar: "//avatar/alice"}
	bob   = models.User{ID: "u-bob", Name: "Bob", Email: "bob@example.com", Avatar: "//avatar/bob"}
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStores() (*testutil.PostRepoStub, *testutil.UserRepoStub) {
	return testutil.NewPostRepoStub(), testutil.NewUserRepoStub(alice, bob)
}

// seedPost stores a post by alice with the given id.
func seedPost(posts *testutil.PostRepoStub, id string) *models.Post {
	p := &models.Post{
		ID:     id,
		UserID: alice.ID,
		Name:   alice.Name,
		Avatar: alice.Avatar,
		Text:   "hello",
		Date:   fixedNow,
	}
	p.Normalize()
	posts.Put(p)
	return p
}

func requireAppError(t *testing.T, err error, code, msg string) *models.AppError {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	if msg != "" {
		require.Equal(t, msg, appErr.Message)
	}
	return appErr
}
