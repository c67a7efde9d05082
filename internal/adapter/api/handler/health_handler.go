package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "jobmarket/internal/infrastructure/websocket"
	"jobmarket/internal/usecase"
)

type HealthHandler struct {
	authUseCase         *usecase.AuthUseCase
	notificationUseCase *usecase.NotificationUseCase
	hub                 *ws.Hub
}

func NewHealthHandler(authUseCase *usecase.AuthUseCase, notificationUseCase *usecase.NotificationUseCase, hub *ws.Hub) *HealthHandler {
	return &HealthHandler{
		authUseCase:         authUseCase,
		notificationUseCase: notificationUseCase,
		hub:                 hub,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":        "Server is running",
		"time":          time.Now().Format(time.RFC3339),
		"authenticated": h.authUseCase.Authenticated(),
		"feed_clients":  h.hub.Clients(),
	}
	if lastPoll := h.notificationUseCase.LastPoll(); !lastPoll.IsZero() {
		body["last_poll"] = lastPoll.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, body)
}
