package postgres

import (
	"testing"

	"blog/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func strPtr(s string) *string { return &s }

func newTestUser(username string) *entity.User {
	return &entity.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: strPtr("hash"),
	}
}
