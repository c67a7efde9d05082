package router

import (
	"jobmarket/internal/adapter/api/handler"
	"jobmarket/internal/adapter/api/middleware"

	"github.com/labstack/echo/v4"
)

// SetupAuthRouter initializes session routes
func SetupAuthRouter(e *echo.Echo, sessionMiddleware *middleware.SessionMiddleware) {
	authHandler := handler.GetAuthHandler()

	// Public routes
	e.POST("/v1/session/login", authHandler.Login)

	// Protected routes
	protected := e.Group("/v1/session")
	protected.Use(sessionMiddleware.Authenticate)

	protected.GET("", authHandler.Status)
	protected.POST("/logout", authHandler.Logout)
}
