package usecase

import (
	"context"
	"net/http"

	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
)

// SessionGuard runs authenticated calls. An auth rejection triggers at most
// one renewal and one retry of the identical request; callers never see the
// intermediate 401.
type SessionGuard struct {
	client BackendClient
	auth   *AuthUseCase
}

func NewSessionGuard(client BackendClient, auth *AuthUseCase) *SessionGuard {
	return &SessionGuard{
		client: client,
		auth:   auth,
	}
}

// Do issues req with the current access token and decodes the answer into
// out. Errors come back as *errors.AppError.
func (g *SessionGuard) Do(ctx context.Context, req backend.Request, out any) error {
	token := g.auth.AccessToken()
	if token == "" {
		return apperrors.SessionExpired(nil)
	}

	err := g.client.Do(ctx, req, token, out)
	if !backend.IsAuthRejection(err) {
		return translate(err)
	}

	logger.Debug("%s answered %d, renewing session", req, backend.StatusCode(err))
	renewed, renewErr := g.auth.Renew(ctx, token)
	if renewErr != nil {
		return renewErr
	}

	err = g.client.Do(ctx, req, renewed, out)
	if backend.StatusCode(err) == http.StatusUnauthorized {
		g.auth.expire(ctx, renewed)
		return apperrors.SessionExpired(err)
	}
	return translate(err)
}
