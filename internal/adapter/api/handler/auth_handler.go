package handler

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/usecase"
	"jobmarket/pkg/response"
)

type AuthHandler struct {
	authUseCase *usecase.AuthUseCase
	userUseCase *usecase.UserUseCase
	chatUseCase *usecase.ChatUseCase
}

func NewAuthHandler(authUseCase *usecase.AuthUseCase, userUseCase *usecase.UserUseCase, chatUseCase *usecase.ChatUseCase) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		userUseCase: userUseCase,
		chatUseCase: chatUseCase,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if err := h.authUseCase.Login(ctx, req.Email, req.Password); err != nil {
		return response.Error(c, err)
	}

	// Views opened by a previous user must not survive the switch.
	h.chatUseCase.CloseAll()

	if _, err := h.userUseCase.LoadProfile(ctx); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, h.authUseCase.Status())
}

func (h *AuthHandler) Logout(c echo.Context) error {
	h.chatUseCase.CloseAll()

	if err := h.authUseCase.Logout(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Logged out",
	})
}

func (h *AuthHandler) Status(c echo.Context) error {
	return response.Success(c, h.authUseCase.Status())
}
