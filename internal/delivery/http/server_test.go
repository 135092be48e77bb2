package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"blog/config"
	deliverycontext "blog/internal/delivery/context"
	httpmiddleware "blog/internal/delivery/http/middleware"
	"blog/internal/delivery/http/response"
	"blog/internal/delivery/http/router"
	"blog/internal/delivery/http/router/handler"
	"blog/internal/domain/entity"
	"blog/internal/domain/service"
	"blog/internal/infra/auth"
	"blog/internal/infra/persistence/postgres"
	"blog/internal/infra/storage"
	"blog/internal/usecase/impl"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Correct-Horse-1"

type fakeOAuth struct {
	mu        sync.Mutex
	exchanged []string
}

func (f *fakeOAuth) BuildAuthorizationURL(state string) string {
	return "https://login.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) ExchangeCode(_ context.Context, code string) (*entity.FederatedClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged = append(f.exchanged, code)

	return &entity.FederatedClaims{Subject: "oid-42", Email: "grace@contoso.com"}, nil
}

func (f *fakeOAuth) LogoutURL(redirect string) string {
	return "https://login.example.com/logout?post_logout_redirect_uri=" + url.QueryEscape(redirect)
}

func (f *fakeOAuth) GetProvider() entity.ProviderType { return entity.ProviderTypeMicrosoft }

type nopPublisher struct{}

func (nopPublisher) PublishBlobOrphaned(context.Context, *service.BlobOrphanedEvent) error {
	return nil
}

func (nopPublisher) Close() error { return nil }

type testServer struct {
	echo  *echo.Echo
	oauth *fakeOAuth
}

type envelope struct {
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Error   *response.ErrorInfo `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Auth:             &config.AuthConfig{BcryptCost: bcrypt.MinCost},
		PasswordStrength: &config.PasswordStrengthConfig{MinLength: 8, MaxLength: 64},
		Session:          &config.SessionConfig{TTL: time.Hour},
		Blob:             &config.BlobConfig{BaseURL: "http://localhost/images"},
		MicrosoftOAuth: &config.MicrosoftOAuthConfig{
			ClientID:        "client",
			RedirectPath:    "/getAToken",
			RedirectBaseURL: "http://localhost",
		},
	}
	cfg.HTTP.MaxRequestBodySize = "2MB"
	cfg.SecretKey.Session = "integration-session-secret-0123456789"
	logger := slog.New(slog.DiscardHandler)

	db, err := postgres.OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)
	oauth := &fakeOAuth{}
	txManager := postgres.NewTransactionManager(db)

	authUC := impl.NewAuthService(impl.AuthServiceParams{
		TxManager:    txManager,
		UserRepo:     postgres.NewUserRepository(db),
		Hasher:       auth.NewBcryptHasher(cfg),
		TokenService: tokens,
		OAuthService: oauth,
		Config:       cfg,
		Logger:       logger,
	})
	postUC := impl.NewPostService(impl.PostServiceParams{
		TxManager:      txManager,
		PostRepo:       postgres.NewPostRepository(db),
		BlobStore:      storage.NewBlobStore(bucket, cfg),
		EventPublisher: nopPublisher{},
		Logger:         logger,
	})
	cookies := httpmiddleware.NewCookieWriter(cfg)

	e := newEcho(cfg, logger, router.RouterParams{
		AuthHandler: handler.NewAuthHandler(handler.AuthHandlerParams{
			AuthUC: authUC, Cookies: cookies, Config: cfg, Logger: logger,
		}),
		PostHandler: handler.NewPostHandler(handler.PostHandlerParams{
			PostUC: postUC, AuthUC: authUC, Cookies: cookies, Logger: logger,
		}),
		HealthHandler:  handler.NewHealthHandler(db),
		AuthMiddleware: httpmiddleware.NewAuthMiddleware(authUC),
		Config:         cfg,
	})

	return &testServer{echo: e, oauth: oauth}
}

func (s *testServer) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	return rec
}

func (s *testServer) json(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	return s.do(t, req, cookies...)
}

func (s *testServer) multipart(t *testing.T, method, target string, fields map[string]string, filename, content string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	return s.do(t, req, cookies...)
}

// signUp registers and signs in a user, returning the session cookie.
func (s *testServer) signUp(t *testing.T, username string) *http.Cookie {
	t.Helper()

	rec := s.json(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": username + "@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	session := findCookie(rec, httpmiddleware.SessionCookieName)
	require.NotNil(t, session)
	require.NotEmpty(t, session.Value)

	return session
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}

	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) (T, envelope) {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	var data T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}

	return data, env
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(deliverycontext.HeaderXRequestID))
}

func TestServer_LocalAuth(t *testing.T) {
	s := newTestServer(t)
	session := s.signUp(t, "ann")

	rec := s.json(t, http.MethodGet, "/me", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	me, _ := decode[handler.UserResponse](t, rec)
	assert.Equal(t, "ann", me.Username)
	assert.True(t, me.Password)

	rec = s.json(t, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, env := decode[any](t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	rec = s.json(t, http.MethodPost, "/auth/login", map[string]string{"username": "ann", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, env = decode[any](t, rec)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	assert.Nil(t, findCookie(rec, httpmiddleware.SessionCookieName))

	// Bearer tokens are accepted as well as the cookie.
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.Value)
	assert.Equal(t, http.StatusOK, s.do(t, req).Code)

	// A cross-site GET cannot end the session.
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/auth/logout", nil), session)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Nil(t, findCookie(rec, httpmiddleware.SessionCookieName))

	rec = s.json(t, http.MethodPost, "/auth/logout", nil, session)
	assert.Equal(t, http.StatusOK, rec.Code)
	cleared := findCookie(rec, httpmiddleware.SessionCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	data, _ := decode[map[string]string](t, rec)
	assert.Contains(t, data["logout_url"], "post_logout_redirect_uri=http%3A%2F%2Flocalhost%2F")
}

func TestServer_RegisterValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.json(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "ann", "email": "not-an-email", "password": testPassword,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, env := decode[any](t, rec)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "email")

	rec = s.json(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "ann", "email": "ann@example.com", "password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, env = decode[any](t, rec)
	assert.Equal(t, "PASSWORD_STRENGTH", env.Error.Code)
}

func TestServer_PostLifecycle(t *testing.T) {
	s := newTestServer(t)
	u1 := s.signUp(t, "alice")
	u2 := s.signUp(t, "bob")

	rec := s.multipart(t, http.MethodPost, "/posts", map[string]string{
		"title": "Hello", "subtitle": "First", "author": "Alice", "body": "Hi there",
	}, "pic.jpg", "jpeg-bytes", u1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created, _ := decode[handler.PostMutationResponse](t, rec)
	require.NotNil(t, created.Post)
	require.NotNil(t, created.Post.ImagePath)
	key := *created.Post.ImagePath
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Equal(t, "http://localhost/images/"+key, created.Post.ImageURL)
	assert.True(t, created.Post.CanModify)
	postPath := "/posts/" + created.Post.ID.String()

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/images/"+key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))

	// Only the title changes.
	rec = s.json(t, http.MethodPut, postPath, map[string]string{"title": "Hello again"}, u1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated, _ := decode[handler.PostMutationResponse](t, rec)
	assert.Equal(t, "Hello again", updated.Post.Title)
	assert.Equal(t, "First", updated.Post.Subtitle)
	assert.Equal(t, "Hi there", updated.Post.Body)
	assert.Equal(t, key, *updated.Post.ImagePath)

	rec = s.json(t, http.MethodGet, postPath, nil, u2)
	require.Equal(t, http.StatusOK, rec.Code)
	seen, _ := decode[handler.PostResponse](t, rec)
	assert.False(t, seen.CanModify)

	rec = s.json(t, http.MethodDelete, postPath, nil, u2)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, env := decode[any](t, rec)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
	assert.Equal(t, http.StatusOK, s.do(t, httptest.NewRequest(http.MethodGet, "/images/"+key, nil)).Code)

	rec = s.json(t, http.MethodPost, postPath+"/remove_image", nil, u2)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.json(t, http.MethodPost, postPath+"/delete", nil, u1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodGet, postPath, nil, u1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, httptest.NewRequest(http.MethodGet, "/images/"+key, nil)).Code)
}

func TestServer_RemoveImageAndReplace(t *testing.T) {
	s := newTestServer(t)
	session := s.signUp(t, "alice")

	rec := s.multipart(t, http.MethodPost, "/posts", map[string]string{
		"title": "Hello", "author": "Alice", "body": "Hi",
	}, "a.png", "one", session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created, _ := decode[handler.PostMutationResponse](t, rec)
	oldKey := *created.Post.ImagePath
	postPath := "/posts/" + created.Post.ID.String()

	rec = s.multipart(t, http.MethodPost, postPath, map[string]string{"title": ""}, "b.gif", "two", session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replaced, _ := decode[handler.PostMutationResponse](t, rec)
	newKey := *replaced.Post.ImagePath
	assert.NotEqual(t, oldKey, newKey)
	assert.Equal(t, "Hello", replaced.Post.Title)
	assert.Equal(t, http.StatusNotFound, s.do(t, httptest.NewRequest(http.MethodGet, "/images/"+oldKey, nil)).Code)

	rec = s.json(t, http.MethodDelete, postPath+"/image", nil, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed, _ := decode[handler.PostMutationResponse](t, rec)
	assert.Nil(t, removed.Post.ImagePath)
	assert.Empty(t, removed.Post.ImageURL)
	assert.Equal(t, http.StatusNotFound, s.do(t, httptest.NewRequest(http.MethodGet, "/images/"+newKey, nil)).Code)
}

func TestServer_PostValidation(t *testing.T) {
	s := newTestServer(t)
	session := s.signUp(t, "alice")

	rec := s.json(t, http.MethodPost, "/posts", map[string]string{
		"title": strings.Repeat("x", 151), "author": "a", "body": "b",
	}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.json(t, http.MethodPost, "/posts", map[string]string{"title": "only"}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.json(t, http.MethodGet, "/posts/not-a-uuid", nil, session)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.json(t, http.MethodGet, "/posts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/images/..%2Fsecret", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/images/"+strings.Repeat("A", 32)+".png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, env := decode[any](t, rec)
	assert.Equal(t, "IMAGE_NOT_FOUND", env.Error.Code)
	assert.Equal(t, "Image not found", env.Error.Message)
}

func TestServer_MicrosoftSignIn(t *testing.T) {
	s := newTestServer(t)

	begin := func() (*http.Cookie, string) {
		rec := s.json(t, http.MethodGet, "/auth/microsoft", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		data, _ := decode[map[string]string](t, rec)
		authURL, err := url.Parse(data["authorization_url"])
		require.NoError(t, err)

		stateCookie := findCookie(rec, httpmiddleware.StateCookieName)
		require.NotNil(t, stateCookie)
		assert.True(t, stateCookie.HttpOnly)

		return stateCookie, authURL.Query().Get("state")
	}

	t.Run("state mismatch redirects home with a message", func(t *testing.T) {
		stateCookie, _ := begin()

		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/getAToken?state=forged&code=abc", nil), stateCookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
		assert.Nil(t, findCookie(rec, httpmiddleware.SessionCookieName))
		assert.Empty(t, s.oauth.exchanged)

		flash := findCookie(rec, httpmiddleware.FlashCookieName)
		require.NotNil(t, flash)

		home := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil), flash)
		require.Equal(t, http.StatusOK, home.Code)
		data, env := decode[map[string]any](t, home)
		assert.Equal(t, false, data["authenticated"])
		assert.Contains(t, env.Message, "sign-in request expired")
	})

	t.Run("callback without pending state", func(t *testing.T) {
		_, state := begin()

		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/getAToken?state="+url.QueryEscape(state)+"&code=abc", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Nil(t, findCookie(rec, httpmiddleware.SessionCookieName))
		assert.Empty(t, s.oauth.exchanged)
	})

	t.Run("provider error", func(t *testing.T) {
		stateCookie, state := begin()

		rec := s.do(t, httptest.NewRequest(http.MethodGet,
			"/getAToken?state="+url.QueryEscape(state)+"&error=access_denied&error_description=internal+detail", nil), stateCookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Nil(t, findCookie(rec, httpmiddleware.SessionCookieName))
		assert.Empty(t, s.oauth.exchanged)

		home := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil), findCookie(rec, httpmiddleware.FlashCookieName))
		_, env := decode[map[string]any](t, home)
		assert.Equal(t, "Microsoft sign-in failed", env.Message)
		assert.NotContains(t, home.Body.String(), "internal detail")
	})

	t.Run("success", func(t *testing.T) {
		stateCookie, state := begin()

		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/getAToken?state="+url.QueryEscape(state)+"&code=good", nil), stateCookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, []string{"good"}, s.oauth.exchanged)

		session := findCookie(rec, httpmiddleware.SessionCookieName)
		require.NotNil(t, session)
		require.NotEmpty(t, session.Value)

		cleared := findCookie(rec, httpmiddleware.StateCookieName)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)

		me := s.json(t, http.MethodGet, "/me", nil, session)
		require.Equal(t, http.StatusOK, me.Code)
		user, _ := decode[handler.UserResponse](t, me)
		assert.Equal(t, "grace", user.Username)
		assert.True(t, user.Microsoft)
		assert.False(t, user.Password)

		home := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil), session)
		data, _ := decode[map[string]any](t, home)
		assert.Equal(t, true, data["authenticated"])
	})

	t.Run("replayed state cookie", func(t *testing.T) {
		stateCookie, state := begin()
		callback := "/getAToken?state=" + url.QueryEscape(state) + "&code=once"

		rec := s.do(t, httptest.NewRequest(http.MethodGet, callback, nil), stateCookie)
		require.NotNil(t, findCookie(rec, httpmiddleware.SessionCookieName))
		exchanged := len(s.oauth.exchanged)

		// The browser cleared the cookie; a copy of it is presented again.
		rec = s.do(t, httptest.NewRequest(http.MethodGet, callback, nil), stateCookie)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Nil(t, findCookie(rec, httpmiddleware.SessionCookieName))
		assert.NotNil(t, findCookie(rec, httpmiddleware.FlashCookieName))
		assert.Len(t, s.oauth.exchanged, exchanged)
	})

	t.Run("redirect mode", func(t *testing.T) {
		rec := s.json(t, http.MethodGet, "/auth/microsoft?redirect=true", nil)
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "https://login.example.com/authorize"))
	})
}
