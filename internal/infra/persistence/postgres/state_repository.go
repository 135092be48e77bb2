package postgres

import (
	"context"
	"time"

	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/repository"
	"blog/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// stateRepository implements repository.StateRepository using GORM.
type stateRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStateRepository is the constructor for stateRepository.
func NewStateRepository(db *gorm.DB) repository.StateRepository {
	return &stateRepository{db: db, now: time.Now}
}

// Consume inserts the token id; the primary key turns a second use into ErrStateConsumed.
// Expired rows are purged on the way, since their tokens no longer validate.
func (repo *stateRepository) Consume(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.Wrap(repository.ErrStateConsumed, "state token has no id")
	}

	db := repo.db.WithContext(ctx)

	if err := db.Where("expires_at < ?", repo.now()).Delete(&model.ConsumedStateModel{}).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to purge expired states")
	}

	err := db.Create(&model.ConsumedStateModel{TokenID: tokenID, ExpiresAt: expiresAt}).Error
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrStateConsumed
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to consume state")
	}

	return nil
}
