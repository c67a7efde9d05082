package usecase

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	"jobmarket/internal/testutil/fakeapi"
	apperrors "jobmarket/pkg/errors"
)

func TestSessionGuard_NoCredential(t *testing.T) {
	h := newHarness(t, NotificationOptions{})

	var out backend.ProfilePayload
	err := h.guard.Do(context.Background(), backend.ProfileCall(), &out)

	assert.True(t, apperrors.Is(err, apperrors.CodeSessionExpired))
	assert.Zero(t, h.api.Calls(fakeapi.RouteProfile))
}

func TestSessionGuard_RenewsAndRetriesOnce(t *testing.T) {
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)
	before := h.auth.AccessToken()
	saves := h.repo.Saves()

	h.api.ExpireAccessTokens()

	var out backend.ProfilePayload
	require.NoError(t, h.guard.Do(context.Background(), backend.ProfileCall(), &out))

	assert.Equal(t, "ana", out.Username)
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteRefresh))
	assert.Equal(t, 2, h.api.Calls(fakeapi.RouteProfile))
	assert.NotEqual(t, before, h.auth.AccessToken())

	stored, err := h.repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.auth.AccessToken(), stored.AccessToken)
	assert.Equal(t, saves+1, h.repo.Saves())
}

func TestSessionGuard_ConcurrentRenewalsCoalesce(t *testing.T) {
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)

	h.api.ExpireAccessTokens()
	h.api.SetDelay(fakeapi.RouteRefresh, 150*time.Millisecond)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.guard.Do(context.Background(), backend.UnreadCountCall(), &backend.UnreadCountPayload{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteRefresh))
}

func TestSessionGuard_RefreshRejectedClearsCredential(t *testing.T) {
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)

	h.api.ExpireAccessTokens()
	h.api.RevokeRefreshTokens()

	err := h.guard.Do(context.Background(), backend.ProfileCall(), nil)

	assert.True(t, apperrors.Is(err, apperrors.CodeSessionExpired))
	assert.False(t, h.auth.Authenticated())
	stored, loadErr := h.repo.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Nil(t, stored)
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteProfile))
}

func TestSessionGuard_RefreshUnreachableKeepsCredential(t *testing.T) {
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)

	h.api.ExpireAccessTokens()
	h.api.FailNext(fakeapi.RouteRefresh, fakeapi.DropConnection, nil)

	err := h.guard.Do(context.Background(), backend.ProfileCall(), nil)

	assert.True(t, apperrors.Is(err, apperrors.CodeNetwork))
	assert.True(t, h.auth.Authenticated())
}

func TestSessionGuard_MissingRefreshToken(t *testing.T) {
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	access, _ := h.api.IssueTokens(ana.ID)
	require.NoError(t, h.repo.Save(context.Background(), &entity.Credential{AccessToken: access}))
	_, err := h.auth.Restore(context.Background())
	require.NoError(t, err)

	h.api.ExpireAccessTokens()
	err = h.guard.Do(context.Background(), backend.ProfileCall(), nil)

	assert.True(t, apperrors.Is(err, apperrors.CodeSessionExpired))
	assert.Zero(t, h.api.Calls(fakeapi.RouteRefresh))
	assert.False(t, h.auth.Authenticated())
}

func TestSessionGuard_SecondRejection(t *testing.T) {
	detail := map[string]any{"detail": "nope"}

	t.Run("401 after renewal expires the session", func(t *testing.T) {
		h := newHarness(t, NotificationOptions{})
		ana := h.api.AddUser("ana", "ana@example.com", "secret")
		h.signIn(t, ana)
		h.api.FailNext(fakeapi.RouteProfile, http.StatusUnauthorized, detail)
		h.api.FailNext(fakeapi.RouteProfile, http.StatusUnauthorized, detail)

		err := h.guard.Do(context.Background(), backend.ProfileCall(), nil)

		assert.True(t, apperrors.Is(err, apperrors.CodeSessionExpired))
		assert.Equal(t, 1, h.api.Calls(fakeapi.RouteRefresh))
		assert.Equal(t, 2, h.api.Calls(fakeapi.RouteProfile))
		assert.False(t, h.auth.Authenticated())
	})

	t.Run("403 after renewal is forbidden", func(t *testing.T) {
		h := newHarness(t, NotificationOptions{})
		ana := h.api.AddUser("ana", "ana@example.com", "secret")
		h.signIn(t, ana)
		h.api.FailNext(fakeapi.RouteProfile, http.StatusForbidden, detail)
		h.api.FailNext(fakeapi.RouteProfile, http.StatusForbidden, detail)

		err := h.guard.Do(context.Background(), backend.ProfileCall(), nil)

		assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
		assert.Equal(t, 1, h.api.Calls(fakeapi.RouteRefresh))
		assert.True(t, h.auth.Authenticated())
	})
}

func TestSessionGuard_TranslatesFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		code    string
		message string
	}{
		{"validation", http.StatusBadRequest, map[string]any{"text": []string{"Too long."}}, apperrors.CodeValidation, "text: Too long."},
		{"not found", http.StatusNotFound, map[string]any{"detail": "Not found."}, apperrors.CodeNotFound, "Not found."},
		{"server error", http.StatusInternalServerError, map[string]any{"error": "boom"}, apperrors.CodeRejected, "boom"},
		{"unreachable", fakeapi.DropConnection, nil, apperrors.CodeNetwork, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, NotificationOptions{})
			ana := h.api.AddUser("ana", "ana@example.com", "secret")
			h.signIn(t, ana)
			h.api.FailNext(fakeapi.RouteMarkAllRead, tt.status, tt.body)

			err := h.guard.Do(context.Background(), backend.MarkAllReadCall(), nil)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, appErr.Message)
			}
		})
	}
}
