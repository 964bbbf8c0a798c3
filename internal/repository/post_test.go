package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"devconnector/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPost(userID, text string, date time.Time) *models.Post {
	return &models.Post{UserID: userID, Name: "Jane", Avatar: "//gravatar/jane", Text: text, Date: date}
}

func TestPostRepository_SaveCreatesAndReads(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	post := newTestPost("u1", "hello", time.Time{})
	require.NoError(t, repo.Save(ctx, post))
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, 0, post.Version)
	assert.False(t, post.Date.IsZero())

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, []models.Like{}, got.Likes)
	assert.Equal(t, []models.Comment{}, got.Comments)
}

func TestPostRepository_GetByIDMissing(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))

	for _, id := range []string{"does-not-exist", "", "not a uuid at all"} {
		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound, "id %q", id)
	}
}

func TestPostRepository_ListNewestFirst(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"oldest", "middle", "newest"} {
		require.NoError(t, repo.Save(ctx, newTestPost("u1", text, base.Add(time.Duration(i)*time.Hour))))
	}

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "newest", posts[0].Text)
	assert.Equal(t, "middle", posts[1].Text)
	assert.Equal(t, "oldest", posts[2].Text)
}

func TestPostRepository_ListEmpty(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostRepository_SaveUpdatesEmbeddedCollections(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	post := newTestPost("u1", "hello", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, post))

	post.AddLike("u2")
	post.AddComment(models.Comment{ID: "c1", UserID: "u2", Text: "nice", Name: "Bob", Date: time.Now().UTC()})
	require.NoError(t, repo.Save(ctx, post))
	assert.Equal(t, 1, post.Version)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Likes, 1)
	assert.Equal(t, "u2", got.Likes[0].UserID)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "nice", got.Comments[0].Text)
	assert.Equal(t, "c1", got.Comments[0].ID)
}

func TestPostRepository_SaveStaleVersionConflicts(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	post := newTestPost("u1", "hello", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, post))

	first, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)

	first.AddLike("u2")
	require.NoError(t, repo.Save(ctx, first))

	second.AddLike("u3")
	assert.ErrorIs(t, repo.Save(ctx, second), ErrVersionConflict)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Likes, 1)
	assert.Equal(t, "u2", got.Likes[0].UserID)
}

func TestPostRepository_SaveDeletedPost(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	post := newTestPost("u1", "hello", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, post))
	require.NoError(t, repo.Delete(ctx, post.ID))

	post.AddLike("u2")
	assert.ErrorIs(t, repo.Save(ctx, post), ErrNotFound)
}

func TestPostRepository_Delete(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	post := newTestPost("u1", "hello", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, post))

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err := repo.GetByID(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, post.ID), ErrNotFound)
}

func TestPostRepository_PostgresVersionConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	post := &models.Post{ID: "p1", UserID: "u1", Text: "hello", Date: time.Now().UTC(), Version: 3}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts" WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.Save(context.Background(), post)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, post.Version, "version must not move on conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_PostgresDeleteMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE id = $1`)).
		WithArgs("p404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.ErrorIs(t, repo.Delete(context.Background(), "p404"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
