package router

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/adapter/api/handler"
	"jobmarket/internal/adapter/api/middleware"
	"jobmarket/internal/infrastructure/ratelimit"
)

func SetupNotificationRouter(e *echo.Echo, sessionMiddleware *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	notificationHandler := handler.GetNotificationHandler()
	feedHandler := handler.GetFeedHandler()
	markRead := middleware.RateLimit(limiter, ratelimit.ActionMarkRead)

	notificationGroup := e.Group("/v1/notifications")
	notificationGroup.Use(sessionMiddleware.Authenticate)

	notificationGroup.GET("", notificationHandler.ListNotifications)
	notificationGroup.GET("/unread-count", notificationHandler.GetUnreadCount)
	notificationGroup.GET("/stream", feedHandler.Stream)
	notificationGroup.POST("/read-all", notificationHandler.MarkAllAsRead, markRead)
	notificationGroup.POST("/:id/read", notificationHandler.MarkAsRead, markRead)
	notificationGroup.POST("/:id/open", notificationHandler.OpenNotification, markRead)
}
