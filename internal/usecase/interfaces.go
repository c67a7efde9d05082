package usecase

import (
	"context"

	"jobmarket/internal/infrastructure/backend"
)

// BackendClient performs one marketplace API call with the given access
// token. *backend.Client implements it.
type BackendClient interface {
	Do(ctx context.Context, req backend.Request, accessToken string, out any) error
}
