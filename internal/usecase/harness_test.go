package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adapterrepo "jobmarket/internal/adapter/repository"
	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	"jobmarket/internal/testutil/fakeapi"
)

type harness struct {
	api   *fakeapi.Server
	repo  *adapterrepo.MemoryCredentialRepository
	auth  *AuthUseCase
	guard *SessionGuard
	users *UserUseCase
	convs *ConversationUseCase
	chats *ChatUseCase
	feed  *NotificationUseCase
	lists *ListingUseCase
}

func newHarness(t *testing.T, opts NotificationOptions) *harness {
	t.Helper()

	api := fakeapi.New()
	t.Cleanup(api.Close)

	client, err := backend.NewClient(backend.Config{BaseURL: api.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	h := &harness{
		api:  api,
		repo: adapterrepo.NewMemoryCredentialRepository(nil),
	}
	h.auth = NewAuthUseCase(client, h.repo)
	h.guard = NewSessionGuard(client, h.auth)
	h.users = NewUserUseCase(h.guard, h.auth)
	h.convs = NewConversationUseCase(h.guard)
	h.chats = NewChatUseCase(h.guard, h.users, h.convs)
	h.feed = NewNotificationUseCase(h.guard, h.auth, opts)
	h.lists = NewListingUseCase(h.guard, h.feed, h.chats)
	return h
}

// signIn installs a freshly issued credential for user, the way a restored
// session would arrive.
func (h *harness) signIn(t *testing.T, user *fakeapi.User) {
	t.Helper()
	access, refresh := h.api.IssueTokens(user.ID)
	require.NoError(t, h.repo.Save(context.Background(), &entity.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
	}))
	ok, err := h.auth.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	h.api.ResetCalls()
}

func (h *harness) job(id int64, creatorID int64) entity.Listing {
	return entity.Listing{Kind: entity.KindJob, ID: id, CreatorID: creatorID}
}
