package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmarket/internal/domain/entity"
)

func TestFileCredentialRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credential.yaml")
	repo := NewFileCredentialRepository(path)

	t.Run("load before save", func(t *testing.T) {
		credential, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, credential)
	})

	t.Run("save and load", func(t *testing.T) {
		err := repo.Save(ctx, &entity.Credential{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			User:         &entity.UserProfile{ID: 7, Username: "ana"},
		})
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		credential, err := repo.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, credential)
		assert.Equal(t, "access-1", credential.AccessToken)
		assert.Equal(t, "refresh-1", credential.RefreshToken)
		assert.Nil(t, credential.User)
	})

	t.Run("overwrite keeps latest access token", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &entity.Credential{AccessToken: "access-2", RefreshToken: "refresh-1"}))

		credential, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access-2", credential.AccessToken)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, repo.Clear(ctx))
		require.NoError(t, repo.Clear(ctx))

		credential, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, credential)
	})
}

func TestFileCredentialRepository_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access_token: [unterminated"), 0o600))

	_, err := NewFileCredentialRepository(path).Load(context.Background())
	assert.Error(t, err)
}
