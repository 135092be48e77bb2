// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"blog/config"
	deliverycontext "blog/internal/delivery/context"
	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/repository"
	"blog/internal/domain/service"
	"blog/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	stateBytes        = 32
	maxUsernameLength = 64
	maxUsernameProbes = 1000
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	oauthService service.OAuthService
	federation   bool
	dummyHash    string
	logger       *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	UserRepo     repository.UserRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	OAuthService service.OAuthService
	Config       *config.Config
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	// Compared against when the user does not exist so that unknown usernames
	// cost the same bcrypt work as wrong passwords.
	dummyHash, err := params.Hasher.Hash("not-a-real-password-" + strconv.FormatInt(time.Now().UnixNano(), 36))
	if err != nil {
		params.Logger.Warn("Failed to prepare dummy password hash", slog.Any("error", err))
	}

	return &authService{
		txManager:    params.TxManager,
		userRepo:     params.UserRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		oauthService: params.OAuthService,
		federation:   params.Config.MicrosoftOAuth.Enabled(),
		dummyHash:    dummyHash,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a local account.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (*entity.User, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)
	if username == "" || email == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("username and email are required")
	}
	if len(username) > maxUsernameLength {
		return nil, domainerrors.ErrValidationFailed.WithDetails("username is too long")
	}

	if err := srv.hasher.ValidatePasswordStrength(input.Password); err != nil {
		return nil, err
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
	}
	if err := srv.userRepo.Create(ctx, user); err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("username", username), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to create user")
	}

	srv.log(ctx).Info("User registered", slog.Any("userID", user.ID))

	return user, nil
}

// Login verifies local credentials. Every failure yields the same error.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	user, err := srv.userRepo.FindByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrPersistence, err.Error())
		}
		srv.hasher.Check(input.Password, srv.dummyHash)

		return nil, domainerrors.ErrInvalidCredentials
	}

	if !user.HasPassword() {
		// Federation-only account.
		srv.hasher.Check(input.Password, srv.dummyHash)

		return nil, domainerrors.ErrInvalidCredentials
	}

	if !srv.hasher.Check(input.Password, *user.PasswordHash) {
		srv.log(ctx).Info("Login rejected", slog.Any("userID", user.ID))

		return nil, domainerrors.ErrInvalidCredentials
	}

	return srv.issueSession(ctx, user, entity.ProviderTypeLocal)
}

// BeginFederatedLogin generates the anti-forgery state and the authorization URL bound to it.
func (srv *authService) BeginFederatedLogin(ctx context.Context) (*usecase.FederatedLoginStart, error) {
	if !srv.federation {
		return nil, errors.Wrap(domainerrors.ErrProviderError, "Microsoft sign-in is not configured")
	}

	state, err := generateState()
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrInternalError, err.Error())
	}

	stateToken, err := srv.tokenService.GenerateStateToken(state)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrInternalError, err.Error())
	}

	srv.log(ctx).Debug("Federated sign-in started", slog.String("state", entity.FederatedLoginPending.String()))

	return &usecase.FederatedLoginStart{
		AuthorizationURL: srv.oauthService.BuildAuthorizationURL(state),
		StateToken:       stateToken,
		ExpiresAt:        time.Now().Add(srv.tokenService.GetStateDuration()),
	}, nil
}

// CompleteFederatedLogin drives a pending sign-in to a terminal state. The code is
// exchanged only after the returned state matches the pending one.
func (srv *authService) CompleteFederatedLogin(ctx context.Context, input *usecase.CompleteFederatedLoginInput) (*usecase.LoginOutput, error) {
	if input.PendingStateToken == "" {
		return nil, srv.reject(ctx, entity.FederatedLoginRejectedStateMismatch, domainerrors.ErrStateMismatch, "no pending sign-in")
	}

	pending, err := srv.tokenService.ValidateStateToken(input.PendingStateToken)
	if err != nil {
		return nil, srv.reject(ctx, entity.FederatedLoginRejectedStateMismatch, domainerrors.ErrStateMismatch, err.Error())
	}

	// Consumed before comparing, so a token is spent by a mismatch too.
	if err := srv.consumeState(ctx, pending); err != nil {
		return nil, err
	}

	if input.ReturnedState == "" || subtle.ConstantTimeCompare([]byte(pending.State), []byte(input.ReturnedState)) != 1 {
		return nil, srv.reject(ctx, entity.FederatedLoginRejectedStateMismatch, domainerrors.ErrStateMismatch, "returned state does not match")
	}

	if input.Error != "" {
		return nil, srv.reject(ctx, entity.FederatedLoginRejectedProviderError, domainerrors.ErrProviderError,
			input.Error+": "+input.ErrorDescription)
	}
	if input.Code == "" {
		return nil, srv.reject(ctx, entity.FederatedLoginRejectedProviderError, domainerrors.ErrProviderError, "missing authorization code")
	}

	claims, err := srv.oauthService.ExchangeCode(ctx, input.Code)
	if err != nil {
		return nil, srv.reject(ctx, entity.FederatedLoginRejectedProviderError, domainerrors.ErrProviderError, err.Error())
	}

	user, err := srv.resolveFederatedUser(ctx, claims)
	if err != nil {
		srv.log(ctx).Error("Failed to resolve federated user", slog.String("subject", claims.Subject), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Federated sign-in completed",
		slog.String("state", entity.FederatedLoginAuthenticated.String()),
		slog.Any("userID", user.ID))

	return srv.issueSession(ctx, user, srv.oauthService.GetProvider())
}

// FederationEnabled reports whether Microsoft sign-in is configured.
func (srv *authService) FederationEnabled() bool {
	return srv.federation
}

// FederatedLogoutURL returns the provider sign-out URL.
func (srv *authService) FederatedLogoutURL(postLogoutRedirect string) string {
	return srv.oauthService.LogoutURL(postLogoutRedirect)
}

// AuthenticateSession validates a session token.
func (srv *authService) AuthenticateSession(ctx context.Context, token string) (entity.Identity, error) {
	if token == "" {
		return entity.Anonymous{}, domainerrors.ErrUnauthenticated
	}

	claims, err := srv.tokenService.ValidateSessionToken(token)
	if err != nil {
		srv.log(ctx).Debug("Session token rejected", slog.Any("error", err))

		return entity.Anonymous{}, errors.Wrap(domainerrors.ErrUnauthenticated, err.Error())
	}

	return claims.Identity(), nil
}

// CurrentUser loads the profile of the acting user.
func (srv *authService) CurrentUser(ctx context.Context, identity entity.Identity) (*entity.User, error) {
	if identity == nil || !identity.IsAuthenticated() {
		return nil, domainerrors.ErrUnauthenticated
	}

	user, err := srv.userRepo.FindByID(ctx, identity.ID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrUserNotFound, err.Error())
		}

		return nil, errors.Wrap(domainerrors.ErrPersistence, err.Error())
	}

	return user, nil
}

func (srv *authService) issueSession(ctx context.Context, user *entity.User, provider entity.ProviderType) (*usecase.LoginOutput, error) {
	token, err := srv.tokenService.GenerateSessionToken(user, provider)
	if err != nil {
		srv.log(ctx).Error("Failed to issue session", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInternalError, err.Error())
	}

	return &usecase.LoginOutput{
		SessionToken: token,
		ExpiresAt:    time.Now().Add(srv.tokenService.GetSessionDuration()),
		User:         user,
	}, nil
}

// resolveFederatedUser finds the account linked to the subject or provisions a new one.
// An existing account is never bound to a subject by email: the provider's email
// claim is not verified, so a collision is refused instead.
func (srv *authService) resolveFederatedUser(ctx context.Context, claims *entity.FederatedClaims) (*entity.User, error) {
	var resolved *entity.User

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		users := repoFactory.UserRepo()

		user, err := users.FindByMSID(ctx, claims.Subject)
		if err == nil {
			resolved = user

			return nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		email := normalizeEmail(claims.Email)
		_, err = users.FindByEmail(ctx, email)
		switch {
		case err == nil:
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email belongs to an account not linked to this Microsoft identity")
		case !errors.Is(err, repository.ErrUserNotFound):
			return err
		}

		username, err := availableUsername(ctx, users, usernameFromEmail(email))
		if err != nil {
			return err
		}

		subject := claims.Subject
		user = &entity.User{Username: username, Email: email, MSID: &subject}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		resolved = user

		srv.log(ctx).Info("Provisioned federated user", slog.Any("userID", user.ID), slog.String("username", username))

		return nil
	})
	if err != nil {
		if _, ok := domainerrors.AsAppError(err); ok {
			return nil, err
		}

		return nil, errors.Wrap(domainerrors.ErrPersistence, err.Error())
	}

	return resolved, nil
}

// consumeState records the state token as used so a captured cookie cannot be replayed.
func (srv *authService) consumeState(ctx context.Context, pending *service.PendingState) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.StateRepo().Consume(ctx, pending.TokenID, pending.ExpiresAt)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStateConsumed):
		return srv.reject(ctx, entity.FederatedLoginRejectedStateMismatch, domainerrors.ErrStateMismatch, "state token already used")
	default:
		srv.log(ctx).Error("Failed to consume sign-in state", slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrPersistence, err.Error())
	}
}

func (srv *authService) reject(ctx context.Context, state entity.FederatedLoginState, err error, reason string) error {
	srv.log(ctx).Warn("Federated sign-in rejected",
		slog.String("state", state.String()),
		slog.String("reason", reason))

	return errors.Wrap(err, reason)
}

// availableUsername returns base, or base followed by the smallest free counter starting at 2.
func availableUsername(ctx context.Context, users repository.UserRepository, base string) (string, error) {
	candidate := base
	for i := 2; i < maxUsernameProbes; i++ {
		taken, err := users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		suffix := strconv.Itoa(i)
		candidate = truncate(base, maxUsernameLength-len(suffix)) + suffix
	}

	return "", domainerrors.ErrUserAlreadyExists.WrapMessage("no free username derived from " + base)
}

// usernameFromEmail derives a username from the local part of an email address.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	username := truncate(b.String(), maxUsernameLength)
	if username == "" {
		return "user"
	}

	return username
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}

func generateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate state")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
