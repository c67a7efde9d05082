package usecase

import (
	"context"
	"errors"
	"net/http"

	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
)

// translate maps transport and status errors onto the application taxonomy.
// Raw transport errors never leave this package.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if backend.IsTransport(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Network("Marketplace is unreachable, try again shortly", err)
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return apperrors.Validation(apiErr.Message, err)
		case http.StatusUnauthorized:
			return apperrors.SessionExpired(err)
		case http.StatusForbidden:
			return apperrors.Forbidden(apiErr.Message, err)
		case http.StatusNotFound:
			return apperrors.New(apperrors.CodeNotFound, apiErr.Message, http.StatusNotFound, err)
		default:
			return apperrors.Rejected(apiErr.Message, err)
		}
	}

	return apperrors.Internal("Unexpected response from marketplace", err)
}

// sendError narrows any failure of a message send to the four outcomes a
// caller has to handle: empty, network, rejected, session expired.
func sendError(err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.Is(err, apperrors.CodeEmptyMessage),
		apperrors.Is(err, apperrors.CodeNetwork),
		apperrors.Is(err, apperrors.CodeSessionExpired),
		apperrors.Is(err, apperrors.CodeSelectionRequired):
		return err
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return apperrors.Rejected(appErr.Message, err)
	}
	return apperrors.Rejected("Message was not accepted", err)
}
