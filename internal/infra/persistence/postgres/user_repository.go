package postgres

import (
	"context"

	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/repository"
	"blog/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
// It returns the repository as a domain.UserRepository interface, adhering to dependency inversion.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a single user by their unique ID.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return repo.findOne(repo.db.WithContext(ctx), "id = ?", id)
}

// FindByUsername retrieves a single user by username.
func (repo *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return repo.findOne(repo.db.WithContext(ctx), "username = ?", username)
}

// FindByEmail retrieves a single user by their email address.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.findOne(repo.db.WithContext(ctx), "email = ?", email)
}

// FindByMSID retrieves the user linked to a Microsoft subject. It reads from the
// primary so a sign-in right after provisioning sees the new row.
func (repo *userRepository) FindByMSID(ctx context.Context, msID string) (*entity.User, error) {
	return repo.findOne(repo.db.WithContext(ctx).Clauses(dbresolver.Write), "ms_id = ?", msID)
}

// UsernameExists reports whether a username is taken.
func (repo *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).
		Model(&model.UserModel{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to count users by username")
	}

	return count > 0, nil
}

// Create persists a new user entity.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	if !user.Usable() {
		return domainerrors.ErrValidationFailed.WrapMessage("user needs a password or a Microsoft identity")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("username, email or Microsoft identity already exists")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required user information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

func (repo *userRepository) findOne(db *gorm.DB, query string, args ...any) (*entity.User, error) {
	var userM model.UserModel
	if err := db.Where(query, args...).First(&userM).Error; err != nil {
		// If the error is 'record not found', return a domain-specific error.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrapf(err, "failed to find user where %s", query)
	}

	return toUserDomain(&userM), nil
}

func toUserDomain(m *model.UserModel) *entity.User {
	return &entity.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Email:        m.Email,
		MSID:         m.MSID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromUserDomain(u *entity.User) *model.UserModel {
	return &model.UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: emptyToNil(u.PasswordHash),
		Email:        u.Email,
		MSID:         emptyToNil(u.MSID),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}
