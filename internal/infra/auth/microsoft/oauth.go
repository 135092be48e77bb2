// Package microsoft signs users in with the Microsoft identity platform (v2 endpoints)
// using the OAuth2 authorization-code flow and a verified OpenID Connect ID token.
package microsoft

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"

	"blog/config"
	"blog/internal/domain/entity"
	"blog/internal/domain/service"
	"blog/internal/errors"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Tenants that accept accounts from many directories. Tokens issued through
// them carry the issuer of the user's home tenant.
var multiTenantAuthorities = []string{"common", "organizations", "consumers"}

var requiredScopes = []string{oidc.ScopeOpenID, "profile", "email"}

// idTokenClaims are the Microsoft-specific ID token claims the blog relies on.
type idTokenClaims struct {
	Issuer            string `json:"iss"`
	Subject           string `json:"sub"`
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
}

// OAuthService handles Microsoft identity platform operations.
type OAuthService struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	authority    string
	multiTenant  bool
	logger       *slog.Logger
}

// NewOAuthService creates the Microsoft OAuth service from configuration.
func NewOAuthService(cfg *config.Config, logger *slog.Logger) service.OAuthService {
	msCfg := cfg.MicrosoftOAuth
	authority := strings.TrimRight(msCfg.Authority, "/")

	scopes := slices.Clone(requiredScopes)
	for _, scope := range msCfg.Scopes {
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}

	multiTenant := slices.Contains(multiTenantAuthorities, strings.ToLower(path.Base(authority)))

	keySet := oidc.NewRemoteKeySet(context.Background(), authority+"/discovery/v2.0/keys")
	verifier := oidc.NewVerifier(authority+"/v2.0", keySet, &oidc.Config{
		ClientID:        msCfg.ClientID,
		SkipIssuerCheck: multiTenant,
	})

	return &OAuthService{
		oauth2Config: &oauth2.Config{
			ClientID:     msCfg.ClientID,
			ClientSecret: msCfg.ClientSecret,
			RedirectURL:  msCfg.RedirectURL(),
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authority + "/oauth2/v2.0/authorize",
				TokenURL:  authority + "/oauth2/v2.0/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:    verifier,
		authority:   authority,
		multiTenant: multiTenant,
		logger:      logger,
	}
}

// BuildAuthorizationURL returns the authorize endpoint URL bound to state.
func (s *OAuthService) BuildAuthorizationURL(state string) string {
	return s.oauth2Config.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// ExchangeCode redeems the authorization code and verifies the returned ID token.
func (s *OAuthService) ExchangeCode(ctx context.Context, code string) (*entity.FederatedClaims, error) {
	token, err := s.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response carries no id_token")
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify id_token")
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "failed to decode id_token claims")
	}

	if s.multiTenant {
		if err := s.checkTenantIssuer(claims); err != nil {
			return nil, err
		}
	}

	federated := &entity.FederatedClaims{
		Subject: firstNonEmpty(claims.ObjectID, claims.Subject),
		Email:   firstNonEmpty(claims.PreferredUsername, claims.Email),
		Name:    claims.Name,
	}
	if federated.Subject == "" {
		return nil, errors.New("id_token carries no subject")
	}
	if federated.Email == "" {
		return nil, errors.New("id_token carries no username or email")
	}

	s.logger.DebugContext(ctx, "Microsoft ID token verified",
		slog.String("tenant", claims.TenantID),
		slog.String("subject", federated.Subject))

	return federated, nil
}

// LogoutURL returns the sign-out endpoint that returns the browser to postLogoutRedirect.
func (s *OAuthService) LogoutURL(postLogoutRedirect string) string {
	logoutURL := s.authority + "/oauth2/v2.0/logout"
	if postLogoutRedirect == "" {
		return logoutURL
	}

	params := url.Values{}
	params.Set("post_logout_redirect_uri", postLogoutRedirect)

	return logoutURL + "?" + params.Encode()
}

// GetProvider returns the OAuth provider type
func (s *OAuthService) GetProvider() entity.ProviderType {
	return entity.ProviderTypeMicrosoft
}

// checkTenantIssuer ties the issuer to the tenant the token claims to come from.
func (s *OAuthService) checkTenantIssuer(claims idTokenClaims) error {
	if claims.TenantID == "" {
		return errors.New("id_token carries no tenant")
	}

	base := strings.TrimSuffix(s.authority, "/"+path.Base(s.authority))
	expected := base + "/" + claims.TenantID + "/v2.0"
	if claims.Issuer != expected {
		return errors.Errorf("unexpected issuer %q", claims.Issuer)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
