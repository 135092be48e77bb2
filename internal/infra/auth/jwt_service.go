package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blog/config"
	"blog/internal/domain/entity"
	"blog/internal/domain/service"
	"blog/internal/errors"
)

const (
	defaultSessionTTL = 24 * time.Hour
	stateTTL          = 10 * time.Minute
	minSecretLength   = 16
)

// jwtService is a concrete implementation of the TokenService interface using HS256 JWTs.
type jwtService struct {
	secret     []byte        // Secret key for signing session and state tokens.
	sessionTTL time.Duration // Time-to-live for session tokens.
	stateTTL   time.Duration // Time-to-live for pending federated sign-ins.
	issuer     string
	now        func() time.Time
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if len(cfg.SecretKey.Session) < minSecretLength {
		return nil, errors.Errorf("session secret must be at least %d characters", minSecretLength)
	}

	sessionTTL := defaultSessionTTL
	if cfg.Session != nil && cfg.Session.TTL > 0 {
		sessionTTL = cfg.Session.TTL
	}

	return &jwtService{
		secret:     []byte(cfg.SecretKey.Session),
		sessionTTL: sessionTTL,
		stateTTL:   stateTTL,
		issuer:     cfg.Env.ServiceName,
		now:        time.Now,
	}, nil
}

// GenerateSessionToken signs a session naming the user.
func (s *jwtService) GenerateSessionToken(user *entity.User, provider entity.ProviderType) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", errors.New("cannot issue a session without a user")
	}

	claims := &service.SessionClaims{
		Username:         user.Username,
		Provider:         provider,
		Type:             service.TokenTypeSession,
		RegisteredClaims: s.registeredClaims(user.ID.String(), s.sessionTTL),
	}

	return s.sign(claims)
}

// ValidateSessionToken parses a session token and returns its claims.
func (s *jwtService) ValidateSessionToken(tokenString string) (*service.SessionClaims, error) {
	claims, err := s.parse(tokenString, service.TokenTypeSession)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "invalid subject claim")
	}
	claims.UserID = userID

	return claims, nil
}

// GenerateStateToken wraps the anti-forgery state of a pending federated sign-in.
func (s *jwtService) GenerateStateToken(state string) (string, error) {
	if state == "" {
		return "", errors.New("state must not be empty")
	}

	claims := &service.SessionClaims{
		State:            state,
		Type:             service.TokenTypeState,
		RegisteredClaims: s.registeredClaims("", s.stateTTL),
	}

	return s.sign(claims)
}

// ValidateStateToken returns the state carried by an unexpired state token.
func (s *jwtService) ValidateStateToken(tokenString string) (*service.PendingState, error) {
	claims, err := s.parse(tokenString, service.TokenTypeState)
	if err != nil {
		return nil, err
	}
	if claims.State == "" {
		return nil, errors.New("state token carries no state")
	}
	if claims.ID == "" {
		return nil, errors.New("state token carries no id")
	}

	return &service.PendingState{
		State:     claims.State,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// GetSessionDuration returns the configured duration for session tokens.
func (s *jwtService) GetSessionDuration() time.Duration {
	return s.sessionTTL
}

// GetStateDuration returns how long a pending federated sign-in stays valid.
func (s *jwtService) GetStateDuration() time.Duration {
	return s.stateTTL
}

func (s *jwtService) registeredClaims(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()

	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (s *jwtService) sign(claims *service.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

func (s *jwtService) parse(tokenString, tokenType string) (*service.SessionClaims, error) {
	claims := &service.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token")
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Type != tokenType {
		return nil, errors.Errorf("unexpected token type %q", claims.Type)
	}

	return claims, nil
}
