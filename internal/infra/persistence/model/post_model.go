package model

import (
	"time"

	"github.com/google/uuid"
)

// PostModel mirrors the 'posts' table. UserID references users.id (UUID).
type PostModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"type:varchar(150);not null"`
	Subtitle  string    `gorm:"type:varchar(255)"`
	Author    string    `gorm:"type:varchar(75);not null"`
	Body      string    `gorm:"type:varchar(800);not null"`
	ImagePath *string   `gorm:"type:varchar(100)"`
	Timestamp time.Time `gorm:"not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`

	User *UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (PostModel) TableName() string {
	return "posts"
}
