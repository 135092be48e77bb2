package entity

import (
	"time"

	"github.com/google/uuid"
)

// Post is a blog entry owned by exactly one user.
type Post struct {
	ID        uuid.UUID
	Title     string
	Subtitle  string
	Author    string // Display name shown with the post, free text.
	Body      string
	ImagePath *string // Blob key of the attached image, nil when no image is attached.
	Timestamp time.Time
	UserID    uuid.UUID // Owning user.
}

// HasImage reports whether an image blob is attached.
func (p *Post) HasImage() bool {
	return p.ImagePath != nil && *p.ImagePath != ""
}

// ImageKey returns the attached blob key or an empty string.
func (p *Post) ImageKey() string {
	if !p.HasImage() {
		return ""
	}

	return *p.ImagePath
}

// PostFields carries the mutable post attributes of a create or update.
// A nil or empty field is treated as absent and never overwrites an existing value.
type PostFields struct {
	Title    *string
	Subtitle *string
	Author   *string
	Body     *string
}

// ApplyTo copies every supplied field onto the post.
func (f PostFields) ApplyTo(post *Post) {
	assignIfPresent(&post.Title, f.Title)
	assignIfPresent(&post.Subtitle, f.Subtitle)
	assignIfPresent(&post.Author, f.Author)
	assignIfPresent(&post.Body, f.Body)
}

func assignIfPresent(dst *string, src *string) {
	if src == nil || *src == "" {
		return
	}
	*dst = *src
}

// CanModify is the ownership check guarding every mutating post operation.
func CanModify(actingUserID uuid.UUID, post *Post) bool {
	if post == nil || actingUserID == uuid.Nil {
		return false
	}

	return post.UserID == actingUserID
}
