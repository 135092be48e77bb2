package context

import (
	"blog/internal/domain/entity"

	"github.com/labstack/echo/v4"
)

// KeyIdentity is the key for storing the acting identity in echo.Context.
const KeyIdentity ContextKey = "identity"

// SetIdentity stores the acting identity of the request.
func SetIdentity(c echo.Context, identity entity.Identity) {
	c.Set(string(KeyIdentity), identity)
}

// GetIdentity returns the acting identity of the request, Anonymous when none was resolved.
func GetIdentity(c echo.Context) entity.Identity {
	if identity, ok := c.Get(string(KeyIdentity)).(entity.Identity); ok && identity != nil {
		return identity
	}

	return entity.Anonymous{}
}
