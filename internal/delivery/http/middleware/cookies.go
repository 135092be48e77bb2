package middleware

import (
	"net/http"
	"time"

	"blog/config"

	"github.com/labstack/echo/v4"
)

const (
	// SessionCookieName holds the signed session token.
	SessionCookieName = "session"
	// StateCookieName holds the signed anti-forgery state of a pending federated sign-in.
	StateCookieName = "oauth_state"
	// FlashCookieName carries a one-shot message to the page a redirect lands on.
	FlashCookieName = "flash"
)

// CookieWriter sets the cookies used by the browser flows.
type CookieWriter struct {
	secure bool
}

// NewCookieWriter creates a cookie writer. session.secure marks every cookie HTTPS only.
func NewCookieWriter(cfg *config.Config) *CookieWriter {
	return &CookieWriter{secure: cfg.Session != nil && cfg.Session.Secure}
}

// Set writes an HttpOnly cookie expiring at expires.
func (w *CookieWriter) Set(c echo.Context, name, value string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   w.secure,
		// Lax so the cookie survives the top-level redirect back from the identity provider.
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires a cookie immediately.
func (w *CookieWriter) Clear(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   w.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Take returns a cookie value and clears it, or "" when absent.
func (w *CookieWriter) Take(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return ""
	}
	w.Clear(c, name)

	return cookie.Value
}
