package handler

import (
	"time"

	"blog/internal/domain/entity"

	"github.com/google/uuid"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  bool      `json:"has_password"`
	Microsoft bool      `json:"microsoft_linked"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(user *entity.User) *UserResponse {
	if user == nil {
		return nil
	}

	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.HasPassword(),
		Microsoft: user.IsFederated(),
		CreatedAt: user.CreatedAt,
	}
}

// SessionResponse is returned after a successful local sign-in.
type SessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// PostResponse is the public view of a post.
type PostResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	ImagePath *string   `json:"image_path,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UserID    uuid.UUID `json:"user_id"`
	// CanModify tells the client whether to offer edit and delete.
	CanModify bool `json:"can_modify"`
}

// PostMutationResponse carries the result of a write and any non-fatal warnings.
type PostMutationResponse struct {
	Post     *PostResponse `json:"post,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// PostRequest is the JSON or form body of a create or update.
// Absent or empty fields leave stored values unchanged.
type PostRequest struct {
	Title    *string `json:"title" form:"title" validate:"omitempty,max=150"`
	Subtitle *string `json:"subtitle" form:"subtitle" validate:"omitempty,max=255"`
	Author   *string `json:"author" form:"author" validate:"omitempty,max=75"`
	Body     *string `json:"body" form:"body" validate:"omitempty,max=800"`
}

func (r *PostRequest) fields() entity.PostFields {
	return entity.PostFields{
		Title:    r.Title,
		Subtitle: r.Subtitle,
		Author:   r.Author,
		Body:     r.Body,
	}
}

// RegisterRequest is the body of a local registration.
type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=64"`
	Email    string `json:"email" form:"email" validate:"required,email,max=150"`
	Password string `json:"password" form:"password" validate:"required"`
}

// LoginRequest is the body of a local sign-in.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}
