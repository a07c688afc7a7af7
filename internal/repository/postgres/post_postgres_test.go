package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"postapi/internal/model"
	"postapi/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postColumns = []string{"id", "text", "username", "published_at", "avatar", "image"}

func strPtr(s string) *string { return &s }

func TestPostPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewPostPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("with post image only", func(t *testing.T) {
		post := &model.Post{
			Text:        "Hello!",
			Username:    "admin",
			PublishedAt: now,
			Image:       strPtr("3f7c1b9e-0d6a-4c55-9b7e-2a1f8e6d4c3b"),
		}

		rows := sqlmock.NewRows(postColumns).
			AddRow(int64(7), post.Text, post.Username, now, nil, *post.Image)

		mock.ExpectQuery("INSERT INTO blogposts").
			WithArgs(post.Text, post.Username, post.PublishedAt, nil, *post.Image).
			WillReturnRows(rows)

		got, err := repo.Create(ctx, post)

		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
		assert.Nil(t, got.Avatar)
		require.NotNil(t, got.Image)
		assert.Equal(t, *post.Image, *got.Image)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO blogposts").
			WillReturnError(errors.New("pool exhausted"))

		got, err := repo.Create(ctx, &model.Post{Text: "x", Username: "y", PublishedAt: now})

		assert.Error(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewPostPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		now := time.Now().UTC()
		rows := sqlmock.NewRows(postColumns).
			AddRow(int64(2), "second", "bob", now, "avatar-id", "image-id").
			AddRow(int64(1), "first", "alice", now.Add(-time.Hour), nil, nil)

		mock.ExpectQuery("SELECT (.+) FROM blogposts ORDER BY published_at DESC").
			WithArgs(5, 5).
			WillReturnRows(rows)

		items, err := repo.List(ctx, repository.PageQuery{Limit: 5, Offset: 5})

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, int64(2), items[0].ID)
		require.NotNil(t, items[0].Avatar)
		assert.Equal(t, "avatar-id", *items[0].Avatar)
		assert.Nil(t, items[1].Avatar)
		assert.Nil(t, items[1].Image)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty page", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM blogposts").
			WithArgs(5, 0).
			WillReturnRows(sqlmock.NewRows(postColumns))

		items, err := repo.List(ctx, repository.PageQuery{Limit: 5, Offset: 0})

		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM blogposts").
			WillReturnError(errors.New("db down"))

		items, err := repo.List(ctx, repository.PageQuery{Limit: 5})

		assert.Error(t, err)
		assert.Nil(t, items)
	})
}
