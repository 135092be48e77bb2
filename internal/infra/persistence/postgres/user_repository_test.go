package postgres

import (
	"context"
	"testing"

	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user := newTestUser("ann")
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", byID.Username)
	assert.Equal(t, "hash", *byID.PasswordHash)
	assert.Nil(t, byID.MSID)

	byName, err := repo.FindByUsername(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := repo.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	exists, err := repo.UsernameExists(ctx, "ann")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.UsernameExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = repo.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = repo.FindByMSID(ctx, "oid")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newTestUser("ann")))

	dupName := newTestUser("ann")
	dupName.Email = "other@example.com"
	err := repo.Create(ctx, dupName)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUserAlreadyExists))

	dupEmail := newTestUser("bob")
	dupEmail.Email = "ann@example.com"
	err = repo.Create(ctx, dupEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUserAlreadyExists))
}

func TestUserRepository_FederatedUser(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	fed := &entity.User{Username: "grace", Email: "grace@example.com", MSID: strPtr("oid-1")}
	require.NoError(t, repo.Create(ctx, fed))

	linked, err := repo.FindByMSID(ctx, "oid-1")
	require.NoError(t, err)
	assert.Equal(t, fed.ID, linked.ID)
	assert.True(t, linked.IsFederated())
	assert.False(t, linked.HasPassword())

	// The same subject cannot belong to two accounts.
	dup := &entity.User{Username: "other", Email: "other@example.com", MSID: strPtr("oid-1")}
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUserAlreadyExists))
}

func TestUserRepository_CreateRejectsUnusableUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	tests := []struct {
		name string
		user *entity.User
	}{
		{name: "no credentials", user: &entity.User{Username: "ann", Email: "ann@example.com"}},
		{name: "empty credentials", user: &entity.User{Username: "bob", Email: "bob@example.com", PasswordHash: strPtr(""), MSID: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))

			exists, err := repo.UsernameExists(ctx, tt.user.Username)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestUserRepository_FederationOnlyUsersShareNullMSIDColumn(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	// Empty MSIDs are stored as NULL so they do not collide on the unique index.
	first := newTestUser("ann")
	first.MSID = strPtr("")
	second := newTestUser("bob")
	second.MSID = strPtr("")

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
}
