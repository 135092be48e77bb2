package repository

import (
	"context"
	"errors"

	"blog/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrPostNotFound is returned when a post does not exist.
var ErrPostNotFound = errors.New("post not found")

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	// FindAll returns every post, newest first.
	FindAll(ctx context.Context) ([]*entity.Post, error)

	// FindByID retrieves a single post by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error)

	// Create inserts a new post and fills in its ID and timestamp.
	Create(ctx context.Context, post *entity.Post) error

	// Update writes every column of an existing post.
	Update(ctx context.Context, post *entity.Post) error

	// Delete removes a post by ID. Deleting a missing post returns ErrPostNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
}
