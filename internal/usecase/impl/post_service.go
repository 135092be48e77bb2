package impl

import (
	"context"
	"io"
	"log/slog"
	"time"

	deliverycontext "blog/internal/delivery/context"
	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/lifecycle"
	"blog/internal/domain/repository"
	"blog/internal/domain/service"
	"blog/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// WarningImageNotRemoved is reported when a replaced or removed image stays in storage.
const WarningImageNotRemoved = "The previous image could not be removed from storage and will be cleaned up later"

// postService implements the PostUsecase interface.
type postService struct {
	txManager      repository.TransactionManager
	postRepo       repository.PostRepository
	blobStore      service.BlobStore
	eventPublisher service.EventPublisher
	logger         *slog.Logger
}

// PostServiceParams holds dependencies for PostService, injected by Fx.
type PostServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	PostRepo       repository.PostRepository
	BlobStore      service.BlobStore
	EventPublisher service.EventPublisher
	Logger         *slog.Logger
}

// NewPostService creates a new post service.
func NewPostService(params PostServiceParams) usecase.PostUsecase {
	return &postService{
		txManager:      params.TxManager,
		postRepo:       params.PostRepo,
		blobStore:      params.BlobStore,
		eventPublisher: params.EventPublisher,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *postService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ListPosts returns every post, newest first.
func (srv *postService) ListPosts(ctx context.Context) ([]*entity.Post, error) {
	posts, err := srv.postRepo.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPersistence, err.Error())
	}

	return posts, nil
}

// GetPost returns a single post.
func (srv *postService) GetPost(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	post, err := srv.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, srv.lookupError(err)
	}

	return post, nil
}

// CreatePost uploads the optional image first and inserts the row only once the blob exists.
func (srv *postService) CreatePost(ctx context.Context, identity entity.Identity, input *usecase.CreatePostInput) (*usecase.PostOutput, error) {
	if identity == nil || !identity.IsAuthenticated() {
		return nil, domainerrors.ErrUnauthenticated
	}

	post := &entity.Post{ID: uuid.New(), UserID: identity.ID()}
	input.Fields.ApplyTo(post)
	if post.Title == "" || post.Author == "" || post.Body == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("title, author and body are required")
	}

	newKey, err := srv.storeImage(ctx, input.Image)
	if err != nil {
		return nil, err
	}
	if newKey != "" {
		post.ImagePath = &newKey
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.PostRepo().Create(ctx, post)
	})
	if err != nil {
		srv.discardUploaded(ctx, post.ID, newKey)

		return nil, srv.persistenceError(ctx, err, "failed to create post")
	}

	srv.log(ctx).Info("Post created", slog.Any("postID", post.ID), slog.Bool("hasImage", post.HasImage()))

	return &usecase.PostOutput{Post: post}, nil
}

// UpdatePost applies a partial update. A new image is uploaded before the row
// changes, and the replaced image is deleted only after the commit.
func (srv *postService) UpdatePost(ctx context.Context, identity entity.Identity, input *usecase.UpdatePostInput) (*usecase.PostOutput, error) {
	post, err := srv.loadForModification(ctx, identity, input.PostID)
	if err != nil {
		return nil, err
	}

	newKey, err := srv.storeImage(ctx, input.Image)
	if err != nil {
		return nil, err
	}

	oldKey := post.ImageKey()
	input.Fields.ApplyTo(post)
	if newKey != "" {
		post.ImagePath = &newKey
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.PostRepo().Update(ctx, post)
	})
	if err != nil {
		srv.discardUploaded(ctx, post.ID, newKey)

		return nil, srv.persistenceError(ctx, err, "failed to update post")
	}

	output := &usecase.PostOutput{Post: post}
	if newKey != "" && oldKey != "" && oldKey != newKey {
		srv.releaseBlob(ctx, post.ID, oldKey, output)
	}

	srv.log(ctx).Info("Post updated", slog.Any("postID", post.ID), slog.Bool("imageReplaced", newKey != ""))

	return output, nil
}

// DeletePost removes the row first and then its image, so no row ever points at a deleted blob.
func (srv *postService) DeletePost(ctx context.Context, identity entity.Identity, id uuid.UUID) (*usecase.PostOutput, error) {
	post, err := srv.loadForModification(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.PostRepo().Delete(ctx, post.ID)
	})
	if err != nil {
		return nil, srv.persistenceError(ctx, err, "failed to delete post")
	}

	output := &usecase.PostOutput{Post: post}
	if post.HasImage() {
		srv.releaseBlob(ctx, post.ID, post.ImageKey(), output)
	}

	srv.log(ctx).Info("Post deleted", slog.Any("postID", post.ID))

	return output, nil
}

// RemoveImage clears the image reference and deletes the blob. It is a no-op for posts without an image.
func (srv *postService) RemoveImage(ctx context.Context, identity entity.Identity, id uuid.UUID) (*usecase.PostOutput, error) {
	post, err := srv.loadForModification(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	output := &usecase.PostOutput{Post: post}
	if !post.HasImage() {
		return output, nil
	}

	key := post.ImageKey()
	post.ImagePath = nil

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.PostRepo().Update(ctx, post)
	})
	if err != nil {
		return nil, srv.persistenceError(ctx, err, "failed to remove image reference")
	}

	srv.releaseBlob(ctx, post.ID, key, output)

	srv.log(ctx).Info("Post image removed", slog.Any("postID", post.ID), slog.String("blobKey", key))

	return output, nil
}

// ImageURL returns the public URL of an image key.
func (srv *postService) ImageURL(key string) string {
	return srv.blobStore.URL(key)
}

// OpenImage streams a stored image.
func (srv *postService) OpenImage(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return srv.blobStore.Open(ctx, key)
}

// loadForModification loads a post and applies the ownership guard.
func (srv *postService) loadForModification(ctx context.Context, identity entity.Identity, id uuid.UUID) (*entity.Post, error) {
	if identity == nil || !identity.IsAuthenticated() {
		return nil, domainerrors.ErrUnauthenticated
	}

	post, err := srv.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, srv.lookupError(err)
	}

	if !entity.CanModify(identity.ID(), post) {
		srv.log(ctx).Warn("Post modification denied",
			slog.Any("postID", post.ID),
			slog.Any("actingUserID", identity.ID()))

		return nil, errors.Wrap(domainerrors.ErrForbidden, "acting user does not own the post")
	}

	return post, nil
}

// storeImage uploads a submitted image and returns its key, or "" when none was submitted.
func (srv *postService) storeImage(ctx context.Context, image *usecase.ImageUpload) (string, error) {
	if !image.Present() {
		return "", nil
	}

	key, err := srv.blobStore.Store(ctx, image.Content, image.Filename)
	if err != nil {
		srv.log(ctx).Error("Image upload failed", slog.String("filename", image.Filename), slog.Any("error", err))

		if _, ok := domainerrors.AsAppError(err); ok {
			return "", err
		}

		return "", errors.Wrap(domainerrors.ErrStorage, err.Error())
	}

	return key, nil
}

// discardUploaded removes a blob uploaded for a write that did not commit.
func (srv *postService) discardUploaded(ctx context.Context, postID uuid.UUID, key string) {
	if key == "" {
		return
	}

	if err := srv.deleteBlob(ctx, key); err != nil {
		srv.log(ctx).Error("Failed to discard uploaded image after rollback",
			slog.String("blobKey", key), slog.Any("error", err))
		srv.reportOrphan(ctx, postID, key, service.OrphanReasonCommitFailed, err)
	}
}

// releaseBlob deletes a blob that committed rows no longer reference.
// Failure is reported as a warning and an orphan event, never as an error.
func (srv *postService) releaseBlob(ctx context.Context, postID uuid.UUID, key string, output *usecase.PostOutput) {
	if err := srv.deleteBlob(ctx, key); err != nil {
		srv.log(ctx).Warn("Failed to delete unreferenced image",
			slog.Any("postID", postID), slog.String("blobKey", key), slog.Any("error", err))
		output.Warnings = append(output.Warnings, WarningImageNotRemoved)
		srv.reportOrphan(ctx, postID, key, service.OrphanReasonDeleteFailed, err)
	}
}

// deleteBlob runs detached from request cancellation so a client disconnect
// right after the commit does not strand the blob.
func (srv *postService) deleteBlob(ctx context.Context, key string) error {
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lifecycle.DefaultTimeout)
	defer cancel()

	return srv.blobStore.Delete(deleteCtx, key)
}

func (srv *postService) reportOrphan(ctx context.Context, postID uuid.UUID, key, reason string, cause error) {
	event := &service.BlobOrphanedEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		BlobKey:    key,
		PostID:     postID.String(),
		Reason:     reason,
		Error:      cause.Error(),
		OccurredAt: time.Now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lifecycle.DefaultTimeout)
	defer cancel()

	if err := srv.eventPublisher.PublishBlobOrphaned(publishCtx, event); err != nil {
		srv.log(ctx).Error("Failed to publish orphaned blob event",
			slog.String("blobKey", key), slog.Any("error", err))
	}
}

func (srv *postService) lookupError(err error) error {
	if errors.Is(err, repository.ErrPostNotFound) {
		return errors.Wrap(domainerrors.ErrPostNotFound, err.Error())
	}

	return errors.Wrap(domainerrors.ErrPersistence, err.Error())
}

// persistenceError keeps taxonomy errors and maps anything else to ErrPersistence.
func (srv *postService) persistenceError(ctx context.Context, err error, msg string) error {
	srv.log(ctx).Error(msg, slog.Any("error", err))

	if errors.Is(err, repository.ErrPostNotFound) {
		return errors.Wrap(domainerrors.ErrPostNotFound, msg)
	}
	if _, ok := domainerrors.AsAppError(err); ok {
		return errors.Wrap(err, msg)
	}

	return errors.Wrap(domainerrors.ErrPersistence, msg+": "+err.Error())
}
