package handler

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/usecase"
	"jobmarket/pkg/response"
)

type ChatHandler struct {
	chatUseCase    *usecase.ChatUseCase
	listingUseCase *usecase.ListingUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase, listingUseCase *usecase.ListingUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase:    chatUseCase,
		listingUseCase: listingUseCase,
	}
}

type openChatRequest struct {
	Kind      string `json:"kind" validate:"required"`
	ListingID int64  `json:"listing_id" validate:"required,gt=0"`
}

type selectConversationRequest struct {
	CounterpartID int64 `json:"counterpart_id" validate:"required,gt=0"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// OpenChat opens the chat of a listing and returns the new view.
func (h *ChatHandler) OpenChat(c echo.Context) error {
	var req openChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	kind, err := parseKind(req.Kind)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	listing, err := h.listingUseCase.Get(ctx, entity.ListingRef{Kind: kind, ID: req.ListingID})
	if err != nil {
		return response.Error(c, err)
	}

	view, err := h.chatUseCase.Open(ctx, listing)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, view.Snapshot())
}

func (h *ChatHandler) GetChat(c echo.Context) error {
	view, err := h.chatUseCase.View(c.Param("view"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, view.Snapshot())
}

func (h *ChatHandler) SelectConversation(c echo.Context) error {
	view, err := h.chatUseCase.View(c.Param("view"))
	if err != nil {
		return response.Error(c, err)
	}

	var req selectConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := view.Select(c.Request().Context(), req.CounterpartID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, view.Snapshot())
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	view, err := h.chatUseCase.View(c.Param("view"))
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := view.Send(c.Request().Context(), req.Text)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) RefreshChat(c echo.Context) error {
	view, err := h.chatUseCase.View(c.Param("view"))
	if err != nil {
		return response.Error(c, err)
	}

	if err := view.Refresh(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, view.Snapshot())
}

func (h *ChatHandler) CloseChat(c echo.Context) error {
	if err := h.chatUseCase.Close(c.Param("view")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Chat closed",
	})
}
