package postgres

import (
	"context"
	"time"

	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/repository"
	"blog/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// postRepository implements the domain.PostRepository interface using GORM.
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository is the constructor for postRepository.
func NewPostRepository(db *gorm.DB) repository.PostRepository {
	return &postRepository{db: db}
}

// FindAll returns every post, newest first.
func (repo *postRepository) FindAll(ctx context.Context) ([]*entity.Post, error) {
	var postsM []*model.PostModel
	if err := repo.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("id").
		Find(&postsM).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list posts")
	}

	posts := make([]*entity.Post, 0, len(postsM))
	for _, postM := range postsM {
		posts = append(posts, toPostDomain(postM))
	}

	return posts, nil
}

// FindByID retrieves a post from the primary, since callers mutate what they read.
func (repo *postRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	var postM model.PostModel
	if err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("id = ?", id).
		First(&postM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPostNotFound
		}

		return nil, errors.Wrap(err, "failed to find post by id")
	}

	return toPostDomain(&postM), nil
}

// Create inserts a post, assigning its ID and timestamp when unset.
func (repo *postRepository) Create(ctx context.Context, post *entity.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now().UTC()
	}

	if err := repo.db.WithContext(ctx).Create(fromPostDomain(post)).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrUserNotFound.WrapMessage("post owner does not exist")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create post")
	}

	return nil
}

// Update writes every mutable column of an existing post, including a cleared image.
func (repo *postRepository) Update(ctx context.Context, post *entity.Post) error {
	result := repo.db.WithContext(ctx).
		Model(&model.PostModel{}).
		Where("id = ?", post.ID).
		Select("title", "subtitle", "author", "body", "image_path").
		Updates(fromPostDomain(post))
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update post")
	}
	if result.RowsAffected == 0 {
		return repository.ErrPostNotFound
	}

	return nil
}

// Delete removes a post by ID.
func (repo *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PostModel{})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete post")
	}
	if result.RowsAffected == 0 {
		return repository.ErrPostNotFound
	}

	return nil
}

func toPostDomain(m *model.PostModel) *entity.Post {
	return &entity.Post{
		ID:        m.ID,
		Title:     m.Title,
		Subtitle:  m.Subtitle,
		Author:    m.Author,
		Body:      m.Body,
		ImagePath: emptyToNil(m.ImagePath),
		Timestamp: m.Timestamp,
		UserID:    m.UserID,
	}
}

func fromPostDomain(p *entity.Post) *model.PostModel {
	return &model.PostModel{
		ID:        p.ID,
		Title:     p.Title,
		Subtitle:  p.Subtitle,
		Author:    p.Author,
		Body:      p.Body,
		ImagePath: emptyToNil(p.ImagePath),
		Timestamp: p.Timestamp,
		UserID:    p.UserID,
	}
}
