package model

import "time"

// ConsumedStateModel mirrors the 'consumed_states' table: the ids of pending
// sign-in state tokens that have already been presented on a callback.
type ConsumedStateModel struct {
	TokenID   string    `gorm:"type:varchar(64);primaryKey"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (ConsumedStateModel) TableName() string {
	return "consumed_states"
}
