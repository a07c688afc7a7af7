package postgres

import (
	"context"
	"database/sql"

	"postapi/internal/model"
	"postapi/internal/repository"
)

// PostPostgres is a PostgreSQL implementation of repository.PostRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type PostPostgres struct {
	db *sql.DB
}

// NewPostPostgres creates a new PostPostgres repository.
func NewPostPostgres(db *sql.DB) *PostPostgres {
	return &PostPostgres{db: db}
}

var _ repository.PostRepository = (*PostPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p      model.Post
		avatar sql.NullString
		image  sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Text, &p.Username, &p.PublishedAt, &avatar, &image); err != nil {
		return nil, err
	}
	if avatar.Valid {
		p.Avatar = &avatar.String
	}
	if image.Valid {
		p.Image = &image.String
	}
	return &p, nil
}

// Create inserts a new post row and returns the stored record.
func (r *PostPostgres) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	const q = `
		INSERT INTO blogposts (text, username, published_at, avatar, image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, text, username, published_at, avatar, image
	`
	row := r.db.QueryRowContext(ctx, q,
		post.Text,
		post.Username,
		post.PublishedAt,
		post.Avatar,
		post.Image,
	)
	return scanPost(row)
}

// List returns posts using LIMIT/OFFSET pagination.
func (r *PostPostgres) List(ctx context.Context, pq repository.PageQuery) ([]model.Post, error) {
	const q = `
		SELECT id, text, username, published_at, avatar, image
		FROM blogposts
		ORDER BY published_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Post, 0, pq.Limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
