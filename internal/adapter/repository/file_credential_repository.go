package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/domain/repository"
)

type fileCredentialRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileCredentialRepository stores the tokens as YAML at path, readable by
// the owner only. The profile is never written; it is re-fetched on restore.
func NewFileCredentialRepository(path string) repository.CredentialRepository {
	return &fileCredentialRepository{
		path: path,
	}
}

type credentialDocument struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

func (r *fileCredentialRepository) Load(ctx context.Context) (*entity.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}

	var doc credentialDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing credential file %s: %w", r.path, err)
	}
	if doc.AccessToken == "" && doc.RefreshToken == "" {
		return nil, nil
	}

	return &entity.Credential{
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
	}, nil
}

func (r *fileCredentialRepository) Save(ctx context.Context, credential *entity.Credential) error {
	if credential == nil {
		return r.Clear(ctx)
	}

	data, err := yaml.Marshal(credentialDocument{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	// Write then rename so a crash never leaves a half-written token file.
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}

func (r *fileCredentialRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}
