package router

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/adapter/api/handler"
	"jobmarket/internal/adapter/api/middleware"
	"jobmarket/internal/infrastructure/ratelimit"
)

// SetupChatRouter sets up listing chat views. A view lives until it is
// closed or the session logs out.
func SetupChatRouter(e *echo.Echo, sessionMiddleware *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	chatHandler := handler.GetChatHandler()

	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(sessionMiddleware.Authenticate) // All chat endpoints require a session

	chatGroup.POST("", chatHandler.OpenChat)                        // POST /v1/chats - Open a listing's chat
	chatGroup.GET("/:view", chatHandler.GetChat)                    // GET /v1/chats/:view - Current snapshot
	chatGroup.POST("/:view/select", chatHandler.SelectConversation) // POST /v1/chats/:view/select - Pick a counterpart
	chatGroup.POST("/:view/refresh", chatHandler.RefreshChat)       // POST /v1/chats/:view/refresh - Re-fetch the thread
	chatGroup.DELETE("/:view", chatHandler.CloseChat)               // DELETE /v1/chats/:view - Close the view

	// Message management
	chatGroup.POST("/:view/messages", chatHandler.SendMessage, middleware.RateLimit(limiter, ratelimit.ActionSendMessage))
}
