// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"blog/config"
	deliverycontext "blog/internal/delivery/context"
	"blog/internal/delivery/http/middleware"
	"blog/internal/delivery/http/response"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// landingPath is where browser flows end up after a redirect.
const landingPath = "/"

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC  usecase.AuthUsecase
	Cookies *middleware.CookieWriter
	Config  *config.Config
	Logger  *slog.Logger
}

// AuthHandler serves local and Microsoft sign-in.
type AuthHandler struct {
	authUC          usecase.AuthUsecase
	cookies         *middleware.CookieWriter
	redirectBaseURL string
	logger          *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	var redirectBaseURL string
	if params.Config.MicrosoftOAuth != nil {
		redirectBaseURL = strings.TrimRight(params.Config.MicrosoftOAuth.RedirectBaseURL, "/")
	}

	return &AuthHandler{
		authUC:          params.AuthUC,
		cookies:         params.Cookies,
		redirectBaseURL: redirectBaseURL,
		logger:          params.Logger,
	}
}

func (h *AuthHandler) log(c echo.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(c.Request().Context(), h.logger)
}

// Register handles local account registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.authUC.Register(c.Request().Context(), &usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.SuccessWithMessage(c, http.StatusCreated, newUserResponse(user), "Registration successful")
}

// Login verifies local credentials and sets the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return domainerrors.ErrInvalidCredentials
	}

	output, err := h.authUC.Login(c.Request().Context(), &usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.cookies.Set(c, middleware.SessionCookieName, output.SessionToken, output.ExpiresAt)

	return response.SuccessWithMessage(c, http.StatusOK, &SessionResponse{
		Token:     output.SessionToken,
		ExpiresAt: output.ExpiresAt,
		User:      newUserResponse(output.User),
	}, "Login successful")
}

// Logout clears the session. When Microsoft sign-in is configured the response
// names the provider sign-out URL, and ?redirect=true follows it directly.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.cookies.Clear(c, middleware.SessionCookieName)
	h.cookies.Clear(c, middleware.StateCookieName)

	data := map[string]string{}
	if h.authUC.FederationEnabled() {
		logoutURL := h.authUC.FederatedLogoutURL(h.baseURL(c) + landingPath)
		if c.QueryParam("redirect") == "true" {
			return c.Redirect(http.StatusFound, logoutURL)
		}
		data["logout_url"] = logoutURL
	}

	return response.SuccessWithMessage(c, http.StatusOK, data, "Logged out")
}

// MicrosoftLogin starts a federated sign-in and stores the pending state in a cookie.
func (h *AuthHandler) MicrosoftLogin(c echo.Context) error {
	start, err := h.authUC.BeginFederatedLogin(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	h.cookies.Set(c, middleware.StateCookieName, start.StateToken, start.ExpiresAt)

	if c.QueryParam("redirect") == "true" {
		return c.Redirect(http.StatusTemporaryRedirect, start.AuthorizationURL)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"authorization_url": start.AuthorizationURL,
	})
}

// MicrosoftCallback completes a federated sign-in. Every outcome redirects to the
// landing page; failures carry a flash message instead of provider details.
func (h *AuthHandler) MicrosoftCallback(c echo.Context) error {
	// The pending state is single use whatever the outcome.
	pending := h.cookies.Take(c, middleware.StateCookieName)

	output, err := h.authUC.CompleteFederatedLogin(c.Request().Context(), &usecase.CompleteFederatedLoginInput{
		PendingStateToken: pending,
		ReturnedState:     c.QueryParam("state"),
		Code:              c.QueryParam("code"),
		Error:             c.QueryParam("error"),
		ErrorDescription:  c.QueryParam("error_description"),
	})
	if err != nil {
		h.log(c).Warn("Microsoft sign-in failed", slog.Any("error", err))
		h.cookies.Set(c, middleware.FlashCookieName, flashValue(domainerrors.UserMessage(err)), flashExpiry())

		return c.Redirect(http.StatusFound, landingPath)
	}

	h.cookies.Set(c, middleware.SessionCookieName, output.SessionToken, output.ExpiresAt)

	return c.Redirect(http.StatusFound, landingPath)
}

// Me returns the profile of the signed in user.
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.authUC.CurrentUser(c.Request().Context(), deliverycontext.GetIdentity(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, newUserResponse(user))
}

func (h *AuthHandler) baseURL(c echo.Context) string {
	if h.redirectBaseURL != "" {
		return h.redirectBaseURL
	}

	return c.Scheme() + "://" + c.Request().Host
}
