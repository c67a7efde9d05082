package router

import (
	"jobmarket/internal/adapter/api/middleware"
	"jobmarket/internal/infrastructure/ratelimit"

	"github.com/labstack/echo/v4"
)

func Setup(e *echo.Echo, sessionMiddleware *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	SetupAuthRouter(e, sessionMiddleware)
	SetupNotificationRouter(e, sessionMiddleware, limiter)
	SetupListingRouter(e, sessionMiddleware)
	SetupChatRouter(e, sessionMiddleware, limiter)
	SetupHealthRouter(e)
}
