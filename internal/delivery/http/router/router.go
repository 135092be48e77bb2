// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"blog/config"
	"blog/internal/delivery/http/middleware"
	"blog/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	PostHandler    *handler.PostHandler
	HealthHandler  *handler.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	postHandler    *handler.PostHandler
	healthHandler  *handler.HealthHandler
	authMiddleware *middleware.AuthMiddleware
	callbackPath   string
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	callbackPath := config.DefaultRedirectPath
	if params.Config.MicrosoftOAuth != nil && params.Config.MicrosoftOAuth.RedirectPath != "" {
		callbackPath = params.Config.MicrosoftOAuth.RedirectPath
	}

	return &router{
		authHandler:    params.AuthHandler,
		postHandler:    params.PostHandler,
		healthHandler:  params.HealthHandler,
		authMiddleware: params.AuthMiddleware,
		callbackPath:   callbackPath,
	}
}

// RegisterRoutes sets up all the routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", r.healthHandler.HealthCheck)

	// Landing page of browser redirects
	e.GET("/", r.postHandler.Home, r.authMiddleware.Identify)
	e.GET("/home", r.postHandler.Home, r.authMiddleware.Identify)

	// Images are public, as blob URLs are
	e.GET("/images/:key", r.postHandler.Image)

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.GET("/microsoft", r.authHandler.MicrosoftLogin)
	}

	// Federated callback, registered at the redirect path configured with the provider
	e.GET(r.callbackPath, r.authHandler.MicrosoftCallback)

	e.GET("/me", r.authHandler.Me, r.authMiddleware.Authenticate)

	postsGroup := e.Group("/posts")
	postsGroup.Use(r.authMiddleware.Authenticate)
	{
		postsGroup.GET("", r.postHandler.ListPosts)
		postsGroup.POST("", r.postHandler.CreatePost)
		postsGroup.GET("/:id", r.postHandler.GetPost)
		postsGroup.PUT("/:id", r.postHandler.UpdatePost)
		postsGroup.DELETE("/:id", r.postHandler.DeletePost)
		postsGroup.DELETE("/:id/image", r.postHandler.RemoveImage)

		// Form-compatible aliases
		postsGroup.POST("/:id", r.postHandler.UpdatePost)
		postsGroup.POST("/:id/delete", r.postHandler.DeletePost)
		postsGroup.POST("/:id/remove_image", r.postHandler.RemoveImage)
	}
}
