package service

import (
	"time"

	"blog/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeSession = "session"
	TokenTypeState   = "oauth_state"
)

// SessionClaims defines the claims of a signed session token.
type SessionClaims struct {
	UserID   uuid.UUID           `json:"-"`
	Username string              `json:"username,omitempty"`
	Provider entity.ProviderType `json:"provider,omitempty"`
	State    string              `json:"state,omitempty"`
	Type     string              `json:"type"`
	jwt.RegisteredClaims
}

// Identity converts session claims into the request identity.
func (c *SessionClaims) Identity() entity.Identity {
	if c == nil || c.UserID == uuid.Nil {
		return entity.Anonymous{}
	}

	return entity.AuthenticatedIdentity{UserID: c.UserID, Username: c.Username}
}

// PendingState is the verified content of a state token.
type PendingState struct {
	State     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService issues and validates the signed tokens backing browser sessions
// and the pending anti-forgery state of a federated sign-in.
type TokenService interface {
	// GenerateSessionToken signs a session for the given user.
	GenerateSessionToken(user *entity.User, provider entity.ProviderType) (string, error)

	// ValidateSessionToken parses a session token and rejects any other token type.
	ValidateSessionToken(tokenString string) (*SessionClaims, error)

	// GenerateStateToken wraps an anti-forgery state value for storage in the browser.
	GenerateStateToken(state string) (string, error)

	// ValidateStateToken returns the state value carried by a state token with
	// the token id and expiry used to consume it once.
	ValidateStateToken(tokenString string) (*PendingState, error)

	// GetSessionDuration returns the configured session lifetime.
	GetSessionDuration() time.Duration

	// GetStateDuration returns how long a pending federated sign-in stays valid.
	GetStateDuration() time.Duration
}
