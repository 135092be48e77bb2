package service

import (
	"context"

	"blog/internal/domain/entity"
)

// OAuthService abstracts an OAuth2/OIDC identity provider using the authorization-code flow.
type OAuthService interface {
	// BuildAuthorizationURL returns the provider URL that starts a sign-in bound to state.
	BuildAuthorizationURL(state string) string

	// ExchangeCode redeems an authorization code and returns the verified ID token claims.
	ExchangeCode(ctx context.Context, code string) (*entity.FederatedClaims, error)

	// LogoutURL returns the provider sign-out URL that redirects back to postLogoutRedirect.
	LogoutURL(postLogoutRedirect string) string

	// GetProvider returns the OAuth provider type
	GetProvider() entity.ProviderType
}
