package repository

import (
	"context"

	"jobmarket/internal/domain/entity"
)

// CredentialRepository is the durable client storage for the session tokens.
// Load returns (nil, nil) when nothing has been stored yet.
type CredentialRepository interface {
	Load(ctx context.Context) (*entity.Credential, error)
	Save(ctx context.Context, credential *entity.Credential) error
	Clear(ctx context.Context) error
}
