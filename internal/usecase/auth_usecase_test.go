package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterrepo "jobmarket/internal/adapter/repository"
	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	"jobmarket/internal/testutil/fakeapi"
	apperrors "jobmarket/pkg/errors"
)

func TestAuthUseCase_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores and persists the credential", func(t *testing.T) {
		h := newHarness(t, NotificationOptions{})
		ana := h.api.AddUser("ana", "ana@example.com", "secret")

		require.NoError(t, h.auth.Login(ctx, "ana@example.com", "secret"))

		assert.True(t, h.auth.Authenticated())
		stored, err := h.repo.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, h.auth.AccessToken(), stored.AccessToken)
		assert.NotEmpty(t, stored.RefreshToken)

		status := h.auth.Status()
		assert.True(t, status.Authenticated)
		assert.Equal(t, ana.ID, status.UserID)
		require.NotNil(t, status.AccessExpiresAt)
		assert.True(t, status.AccessExpiresAt.After(time.Now()))
	})

	t.Run("wrong password", func(t *testing.T) {
		h := newHarness(t, NotificationOptions{})
		h.api.AddUser("ana", "ana@example.com", "secret")

		err := h.auth.Login(ctx, "ana@example.com", "wrong")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeUnauthorized, appErr.Code)
		assert.Equal(t, "No active account found with the given credentials", appErr.Message)
		assert.False(t, h.auth.Authenticated())
	})

	t.Run("missing fields make no call", func(t *testing.T) {
		h := newHarness(t, NotificationOptions{})

		err := h.auth.Login(ctx, "  ", "")

		assert.True(t, apperrors.Is(err, apperrors.CodeBadRequest))
		assert.Zero(t, h.api.Calls(fakeapi.RouteLogin))
	})
}

func TestAuthUseCase_LogoutAndRestore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})

	ok, err := h.auth.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)
	assert.True(t, h.auth.Authenticated())

	require.NoError(t, h.auth.Logout(ctx))
	assert.False(t, h.auth.Authenticated())
	assert.Empty(t, h.auth.AccessToken())
	assert.Equal(t, SessionStatus{}, h.auth.Status())

	stored, err := h.repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAuthUseCase_RenewWithStaleToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)

	first, err := h.auth.Renew(ctx, h.auth.AccessToken())
	require.NoError(t, err)
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteRefresh))

	// A caller still holding the pre-renewal token gets the current one.
	token, err := h.auth.Renew(ctx, "an-older-token")
	require.NoError(t, err)
	assert.Equal(t, first, token)
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteRefresh))
}

func TestAuthUseCase_RenewWithoutSession(t *testing.T) {
	h := newHarness(t, NotificationOptions{})

	_, err := h.auth.Renew(context.Background(), "")

	assert.True(t, apperrors.Is(err, apperrors.CodeSessionExpired))
	assert.Zero(t, h.api.Calls(fakeapi.RouteRefresh))
}

func TestUserUseCase_ProfileCachedPerCredential(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)

	first, err := h.users.CurrentUser(ctx)
	require.NoError(t, err)
	second, err := h.users.CurrentUser(ctx)
	require.NoError(t, err)

	assert.Equal(t, ana.ID, first.ID)
	assert.Equal(t, "Tashkent", first.Location)
	assert.Empty(t, first.PhoneNumber)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteProfile))

	require.NoError(t, h.auth.Logout(ctx))
	assert.Nil(t, h.auth.Profile())
}

func TestUserUseCase_ProfileFromPreviousLoginIsNotCached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	bob := h.api.AddUser("bob", "bob@example.com", "secret")
	h.signIn(t, ana)
	h.api.SetDelay(fakeapi.RouteProfile, 300*time.Millisecond)

	loaded := make(chan *entity.UserProfile, 1)
	go func() {
		profile, err := h.users.LoadProfile(ctx)
		assert.NoError(t, err)
		loaded <- profile
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.True(t, h.api.WaitForCalls(waitCtx, fakeapi.RouteProfile, 1))
	require.NoError(t, h.auth.Login(ctx, "bob@example.com", "secret"))

	first := <-loaded
	require.NotNil(t, first)
	assert.Equal(t, ana.ID, first.ID)
	assert.Nil(t, h.auth.Profile())

	h.api.SetDelay(fakeapi.RouteProfile, 0)
	current, err := h.users.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, current.ID)
	assert.Equal(t, "bob", current.Username)
}

func TestUserUseCase_SharedLoadSurvivesCancelledCaller(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	h.signIn(t, ana)
	h.api.SetDelay(fakeapi.RouteProfile, 300*time.Millisecond)

	firstCtx, cancelFirst := context.WithCancel(ctx)
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		h.users.LoadProfile(firstCtx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.True(t, h.api.WaitForCalls(waitCtx, fakeapi.RouteProfile, 1))

	type result struct {
		profile *entity.UserProfile
		err     error
	}
	second := make(chan result, 1)
	go func() {
		profile, err := h.users.LoadProfile(ctx)
		second <- result{profile, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, ana.ID, got.profile.ID)
	<-firstDone
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteProfile))
	assert.NotNil(t, h.auth.Profile())
}

// gatedRepository holds the first armed Save until release is closed.
type gatedRepository struct {
	*adapterrepo.MemoryCredentialRepository
	mu      sync.Mutex
	armed   bool
	saving  chan struct{}
	release chan struct{}
}

func (r *gatedRepository) Save(ctx context.Context, credential *entity.Credential) error {
	r.mu.Lock()
	hold := r.armed
	r.armed = false
	r.mu.Unlock()

	if hold {
		close(r.saving)
		<-r.release
	}
	return r.MemoryCredentialRepository.Save(ctx, credential)
}

func TestAuthUseCase_LogoutDuringRenewalStaysLoggedOut(t *testing.T) {
	ctx := context.Background()
	api := fakeapi.New()
	t.Cleanup(api.Close)
	client, err := backend.NewClient(backend.Config{BaseURL: api.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	repo := &gatedRepository{
		MemoryCredentialRepository: adapterrepo.NewMemoryCredentialRepository(nil),
		saving:                     make(chan struct{}),
		release:                    make(chan struct{}),
	}
	auth := NewAuthUseCase(client, repo)
	guard := NewSessionGuard(client, auth)

	ana := api.AddUser("ana", "ana@example.com", "secret")
	access, refresh := api.IssueTokens(ana.ID)
	require.NoError(t, repo.Save(ctx, &entity.Credential{AccessToken: access, RefreshToken: refresh}))
	ok, err := auth.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	api.ExpireAccessTokens()
	repo.mu.Lock()
	repo.armed = true
	repo.mu.Unlock()

	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		var payload backend.ProfilePayload
		guard.Do(ctx, backend.ProfileCall(), &payload)
	}()

	<-repo.saving
	loggedOut := make(chan error, 1)
	go func() {
		loggedOut <- auth.Logout(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	close(repo.release)

	require.NoError(t, <-loggedOut)
	<-renewed

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, stored.Authenticated())
	assert.False(t, auth.Authenticated())
}
