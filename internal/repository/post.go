package repository

import (
	"context"

	"postapi/internal/model"
)

// PostRepository is the persistence collaborator for posts.
// No business logic here, strictly persistence operations.
type PostRepository interface {
	// Create inserts a new post and returns the stored row, including the generated ID.
	Create(ctx context.Context, post *model.Post) (*model.Post, error)

	// List returns one page of posts ordered by publication date, newest first.
	List(ctx context.Context, pq PageQuery) ([]model.Post, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}
