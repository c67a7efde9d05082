package handler

import (
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "jobmarket/internal/infrastructure/websocket"
	"jobmarket/internal/usecase"
	"jobmarket/pkg/logger"
)

type FeedHandler struct {
	notificationUseCase *usecase.NotificationUseCase
	hub                 *ws.Hub
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewFeedHandler also subscribes the hub to feed changes, so every poll
// result reaches open streams.
func NewFeedHandler(notificationUseCase *usecase.NotificationUseCase, hub *ws.Hub) *FeedHandler {
	notificationUseCase.OnChange(func(state usecase.FeedState) {
		hub.Broadcast(ws.TypeFeed, state)
	})
	return &FeedHandler{
		notificationUseCase: notificationUseCase,
		hub:                 hub,
	}
}

// Stream upgrades to a websocket that receives the current feed right away
// and again after every change. The first frame is read when the hub
// registers the client, so no change falls between the two.
func (h *FeedHandler) Stream(c echo.Context) error {
	// Upgrade has already answered the request when it fails.
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("Feed stream upgrade failed: %v", err)
		return nil
	}

	client := ws.NewClient(uuid.NewString(), conn)
	greeting := func() ([]byte, error) {
		return ws.Encode(ws.TypeFeed, h.notificationUseCase.Feed())
	}

	if !h.hub.Attach(client, greeting) {
		logger.Warn("Feed hub stopped, closing stream %s", client.ID)
		conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump(h.hub)
	return nil
}
