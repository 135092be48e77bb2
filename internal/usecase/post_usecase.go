package usecase

import (
	"context"
	"io"

	"blog/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// ImageUpload is an image submitted with a create or update.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// Present reports whether an image was actually submitted.
func (u *ImageUpload) Present() bool {
	return u != nil && u.Content != nil && u.Filename != ""
}

// CreatePostInput defines the data required to create a post.
type CreatePostInput struct {
	Fields entity.PostFields
	Image  *ImageUpload
}

// UpdatePostInput defines a partial update of a post. Absent fields keep their value.
type UpdatePostInput struct {
	PostID uuid.UUID
	Fields entity.PostFields
	Image  *ImageUpload
}

// --- Output DTOs ---

// PostOutput is the result of a post mutation. Warnings carry non-fatal
// problems, such as a replaced image that could not be removed from storage.
type PostOutput struct {
	Post     *entity.Post
	Warnings []string
}

// PostUsecase defines post operations coupled to the image blob lifecycle.
type PostUsecase interface {
	ListPosts(ctx context.Context) ([]*entity.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*entity.Post, error)
	CreatePost(ctx context.Context, identity entity.Identity, input *CreatePostInput) (*PostOutput, error)
	UpdatePost(ctx context.Context, identity entity.Identity, input *UpdatePostInput) (*PostOutput, error)
	DeletePost(ctx context.Context, identity entity.Identity, id uuid.UUID) (*PostOutput, error)
	RemoveImage(ctx context.Context, identity entity.Identity, id uuid.UUID) (*PostOutput, error)

	// ImageURL returns the public URL of an attached image.
	ImageURL(key string) string
	// OpenImage streams a stored image.
	OpenImage(ctx context.Context, key string) (io.ReadCloser, string, error)
}
