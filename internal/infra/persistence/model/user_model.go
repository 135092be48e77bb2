package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. IDs are generated by the application
// so the same schema runs on PostgreSQL and SQLite.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash *string   `gorm:"type:varchar(128)"`
	Email        string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	MSID         *string   `gorm:"column:ms_id;type:varchar(150);uniqueIndex"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
