package repository

import (
	"context"
	"sync"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/domain/repository"
)

// MemoryCredentialRepository keeps the credential in process memory. It backs
// tests and runs where nothing should touch the disk.
type MemoryCredentialRepository struct {
	mu         sync.Mutex
	credential *entity.Credential
	saves      int
}

func NewMemoryCredentialRepository(initial *entity.Credential) *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		credential: initial.Clone(),
	}
}

var _ repository.CredentialRepository = (*MemoryCredentialRepository)(nil)

func (r *MemoryCredentialRepository) Load(ctx context.Context) (*entity.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credential.Clone(), nil
}

func (r *MemoryCredentialRepository) Save(ctx context.Context, credential *entity.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = credential.Clone()
	r.saves++
	return nil
}

func (r *MemoryCredentialRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = nil
	return nil
}

// Saves reports how many times Save has been called.
func (r *MemoryCredentialRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
