// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"blog/internal/domain/entity"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a local account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Username string
	Password string
}

// CompleteFederatedLoginInput carries the callback parameters of a federated sign-in
// together with the state token stored when the sign-in began.
type CompleteFederatedLoginInput struct {
	PendingStateToken string
	ReturnedState     string
	Code              string
	Error             string
	ErrorDescription  string
}

// --- Output DTOs ---

// LoginOutput returns the signed session after a successful sign-in.
type LoginOutput struct {
	SessionToken string
	ExpiresAt    time.Time
	User         *entity.User
}

// FederatedLoginStart is the pending half of a federated sign-in.
type FederatedLoginStart struct {
	AuthorizationURL string
	// StateToken must be stored by the browser and presented on the callback.
	StateToken string
	ExpiresAt  time.Time
}

// AuthUsecase defines local and federated authentication.
type AuthUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*entity.User, error)
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)

	BeginFederatedLogin(ctx context.Context) (*FederatedLoginStart, error)
	CompleteFederatedLogin(ctx context.Context, input *CompleteFederatedLoginInput) (*LoginOutput, error)
	FederationEnabled() bool
	FederatedLogoutURL(postLogoutRedirect string) string

	// AuthenticateSession resolves a session token to the acting identity.
	AuthenticateSession(ctx context.Context, token string) (entity.Identity, error)
	CurrentUser(ctx context.Context, identity entity.Identity) (*entity.User, error)
}
