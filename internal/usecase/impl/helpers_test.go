package impl

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"blog/config"
	"blog/internal/domain/entity"
	"blog/internal/domain/repository"
	"blog/internal/domain/service"
	"blog/internal/infra/auth"
	"blog/internal/infra/persistence/postgres"
	"blog/internal/infra/storage"
	"blog/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := postgres.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Auth:             &config.AuthConfig{BcryptCost: bcrypt.MinCost},
		PasswordStrength: &config.PasswordStrengthConfig{MinLength: 8, MaxLength: 64},
		Session:          &config.SessionConfig{TTL: time.Hour},
		Blob:             &config.BlobConfig{BaseURL: "http://localhost/images"},
		MicrosoftOAuth:   &config.MicrosoftOAuthConfig{ClientID: "client"},
	}
	cfg.SecretKey.Session = "unit-test-session-secret-0123456789"

	return cfg
}

// faultyBlobStore wraps a real store and injects failures.
type faultyBlobStore struct {
	service.BlobStore

	mu        sync.Mutex
	failStore bool
	failDel   bool
	deleted   []string
}

func newFaultyBlobStore(t *testing.T) *faultyBlobStore {
	t.Helper()

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })

	return &faultyBlobStore{BlobStore: storage.NewBlobStore(bucket, newTestConfig())}
}

func (s *faultyBlobStore) Store(ctx context.Context, content io.Reader, name string) (string, error) {
	if s.failStore {
		return "", errors.New("object store unavailable")
	}

	return s.BlobStore.Store(ctx, content, name)
}

func (s *faultyBlobStore) Delete(ctx context.Context, key string) error {
	if s.failDel {
		return errors.New("object store unavailable")
	}

	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()

	return s.BlobStore.Delete(ctx, key)
}

func (s *faultyBlobStore) exists(t *testing.T, key string) bool {
	t.Helper()

	ok, err := s.BlobStore.Exists(context.Background(), key)
	require.NoError(t, err)

	return ok
}

// recordingPublisher captures published orphan events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*service.BlobOrphanedEvent
}

func (p *recordingPublisher) PublishBlobOrphaned(_ context.Context, event *service.BlobOrphanedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// failingTxManager fails every transaction without running it.
type failingTxManager struct{}

func (failingTxManager) Execute(context.Context, func(repository.RepositoryFactory) error) error {
	return errors.New("database is unavailable")
}

type postFixture struct {
	db        *gorm.DB
	svc       *postService
	blobs     *faultyBlobStore
	publisher *recordingPublisher
	owner     *entity.User
	other     *entity.User
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()

	db := newTestDB(t)
	users := postgres.NewUserRepository(db)

	owner := &entity.User{Username: "u1", Email: "u1@example.com", PasswordHash: strPtr("hash")}
	require.NoError(t, users.Create(context.Background(), owner))
	other := &entity.User{Username: "u2", Email: "u2@example.com", PasswordHash: strPtr("hash")}
	require.NoError(t, users.Create(context.Background(), other))

	blobs := newFaultyBlobStore(t)
	publisher := &recordingPublisher{}

	svc := NewPostService(PostServiceParams{
		TxManager:      postgres.NewTransactionManager(db),
		PostRepo:       postgres.NewPostRepository(db),
		BlobStore:      blobs,
		EventPublisher: publisher,
		Logger:         discardLogger(),
	}).(*postService)

	return &postFixture{db: db, svc: svc, blobs: blobs, publisher: publisher, owner: owner, other: other}
}

func identityOf(u *entity.User) entity.Identity {
	return entity.AuthenticatedIdentity{UserID: u.ID, Username: u.Username}
}

func image(name, content string) *usecase.ImageUpload {
	return &usecase.ImageUpload{Filename: name, Content: strings.NewReader(content)}
}

// fakeOAuthService stands in for the Microsoft identity platform.
type fakeOAuthService struct {
	claims    *entity.FederatedClaims
	err       error
	exchanged []string
}

func (f *fakeOAuthService) BuildAuthorizationURL(state string) string {
	return "https://login.example.com/authorize?state=" + state
}

func (f *fakeOAuthService) ExchangeCode(_ context.Context, code string) (*entity.FederatedClaims, error) {
	f.exchanged = append(f.exchanged, code)
	if f.err != nil {
		return nil, f.err
	}

	return f.claims, nil
}

func (f *fakeOAuthService) LogoutURL(redirect string) string {
	return "https://login.example.com/logout?post_logout_redirect_uri=" + redirect
}

func (f *fakeOAuthService) GetProvider() entity.ProviderType {
	return entity.ProviderTypeMicrosoft
}

type authFixture struct {
	db     *gorm.DB
	svc    *authService
	oauth  *fakeOAuthService
	tokens service.TokenService
	users  repository.UserRepository
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := newTestConfig()
	db := newTestDB(t)
	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	oauth := &fakeOAuthService{claims: &entity.FederatedClaims{Subject: "oid-1", Email: "Ann.Lee@Contoso.com", Name: "Ann"}}
	users := postgres.NewUserRepository(db)

	svc := NewAuthService(AuthServiceParams{
		TxManager:    postgres.NewTransactionManager(db),
		UserRepo:     users,
		Hasher:       auth.NewBcryptHasher(cfg),
		TokenService: tokens,
		OAuthService: oauth,
		Config:       cfg,
		Logger:       discardLogger(),
	}).(*authService)

	return &authFixture{db: db, svc: svc, oauth: oauth, tokens: tokens, users: users}
}
