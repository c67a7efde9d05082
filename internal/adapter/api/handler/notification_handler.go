package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"jobmarket/internal/usecase"
	"jobmarket/pkg/errors"
	"jobmarket/pkg/response"
	"jobmarket/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

// ListNotifications pages through the last polled feed. ?refresh=true polls
// first.
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	if refresh, _ := strconv.ParseBool(c.QueryParam("refresh")); refresh {
		if err := h.notificationUseCase.RefreshNotifications(c.Request().Context()); err != nil {
			return response.Error(c, err)
		}
	}

	pagination := utils.GetPaginationParams(c)
	notifications := h.notificationUseCase.Notifications()
	page := utils.Paginate(notifications, pagination)

	return response.Paginated(c, page, int64(len(notifications)), pagination.Page, pagination.PageSize)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	if refresh, _ := strconv.ParseBool(c.QueryParam("refresh")); refresh {
		if err := h.notificationUseCase.RefreshUnreadCount(c.Request().Context()); err != nil {
			return response.Error(c, err)
		}
	}

	return response.Success(c, map[string]int{
		"count": h.notificationUseCase.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.notificationUseCase.MarkAsRead(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"id":           id,
		"is_read":      true,
		"unread_count": h.notificationUseCase.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	if err := h.notificationUseCase.MarkAllAsRead(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{
		"unread_count": h.notificationUseCase.UnreadCount(),
	})
}

// OpenNotification records which chat to open once its listings load.
func (h *NotificationHandler) OpenNotification(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	marker, err := h.notificationUseCase.Activate(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, marker)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("Invalid id", err)
	}
	return id, nil
}
