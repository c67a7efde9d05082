package middleware

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/usecase"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/response"
)

// SessionMiddleware admits requests only while the process holds a
// marketplace session. The current user's id is stored as "uid".
type SessionMiddleware struct {
	auth  *usecase.AuthUseCase
	users *usecase.UserUseCase
}

func NewSessionMiddleware(auth *usecase.AuthUseCase, users *usecase.UserUseCase) *SessionMiddleware {
	return &SessionMiddleware{
		auth:  auth,
		users: users,
	}
}

func (m *SessionMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.auth.Authenticated() {
			return response.Error(c, apperrors.Unauthorized("Log in first", nil))
		}

		user, err := m.users.CurrentUser(c.Request().Context())
		if err != nil {
			return response.Error(c, err)
		}

		c.Set("uid", user.ID)
		return next(c)
	}
}

// UserID returns the id stored by Authenticate, 0 outside a session.
func UserID(c echo.Context) int64 {
	id, _ := c.Get("uid").(int64)
	return id
}
