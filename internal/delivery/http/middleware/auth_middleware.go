package middleware

import (
	"strings"

	deliverycontext "blog/internal/delivery/context"
	"blog/internal/domain/entity"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/usecase"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware resolves the session of a request to its acting identity.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC}
}

// Identify stores the acting identity, Anonymous when the request carries no valid session.
func (m *AuthMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		deliverycontext.SetIdentity(c, m.resolve(c))

		return next(c)
	}
}

// Authenticate rejects requests without a valid session.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := m.resolve(c)
		if !identity.IsAuthenticated() {
			return domainerrors.ErrUnauthenticated
		}
		deliverycontext.SetIdentity(c, identity)

		return next(c)
	}
}

func (m *AuthMiddleware) resolve(c echo.Context) entity.Identity {
	token := sessionToken(c)
	if token == "" {
		return entity.Anonymous{}
	}

	identity, err := m.authUC.AuthenticateSession(c.Request().Context(), token)
	if err != nil {
		return entity.Anonymous{}
	}

	return identity
}

// sessionToken reads the bearer token, falling back to the session cookie.
func sessionToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}

	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}

	return ""
}
