package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/testutil/fakeapi"
	apperrors "jobmarket/pkg/errors"
)

func TestListingUseCase_ListAndGet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	jobID := h.api.AddListing("job", ana.ID, "Paint the fence")
	issueID := h.api.AddListing("issue", ana.ID, "Leaking tap")
	h.signIn(t, ana)

	jobs, err := h.lists.List(ctx, entity.KindJob)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)
	assert.Equal(t, ana.ID, jobs[0].CreatorID)
	assert.Equal(t, "General", jobs[0].Category)
	assert.Equal(t, "active", jobs[0].Status)
	require.NotNil(t, jobs[0].Salary)
	assert.Equal(t, "1500.00", *jobs[0].Salary)

	issue, err := h.lists.Get(ctx, entity.ListingRef{Kind: entity.KindIssue, ID: issueID})
	require.NoError(t, err)
	assert.Equal(t, entity.KindIssue, issue.Kind)
	assert.Equal(t, ana.ID, issue.CreatorID)
	assert.Equal(t, "open", issue.Status)
	require.NotNil(t, issue.Salary)
	assert.Equal(t, "1500", *issue.Salary)

	_, err = h.lists.Get(ctx, entity.ListingRef{Kind: entity.KindIssue, ID: 999})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = h.lists.List(ctx, entity.ListingKind("gig"))
	assert.True(t, apperrors.Is(err, apperrors.CodeBadRequest))
}

func TestListingUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	bob := h.api.AddUser("bob", "bob@example.com", "secret")
	jobID := h.api.AddListing("job", ana.ID, "Paint the fence")
	ref := entity.ListingRef{Kind: entity.KindJob, ID: jobID}

	h.signIn(t, bob)
	err := h.lists.Delete(ctx, ref)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	assert.True(t, h.auth.Authenticated())

	h.signIn(t, ana)
	require.NoError(t, h.lists.Delete(ctx, ref))
	jobs, err := h.lists.List(ctx, entity.KindJob)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestListingUseCase_LoadCollectionOpensPendingChat(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, NotificationOptions{RollbackMarkRead: true})
	ana := h.api.AddUser("ana", "ana@example.com", "secret")
	bob := h.api.AddUser("bob", "bob@example.com", "secret")
	jobID := h.api.AddListing("job", ana.ID, "Paint the fence")
	h.api.AddMessage("job", jobID, bob.ID, bob.ID, "I can do it")
	notificationID := h.api.AddNotification(ana.ID, "job_message", jobID, bob.ID, "New message from bob", false)
	h.signIn(t, ana)

	require.NoError(t, h.feed.RefreshNotifications(ctx))
	_, err := h.feed.Activate(ctx, notificationID)
	require.NoError(t, err)

	issues, err := h.lists.LoadCollection(ctx, entity.KindIssue)
	require.NoError(t, err)
	assert.Nil(t, issues.Opened)

	jobs, err := h.lists.LoadCollection(ctx, entity.KindJob)
	require.NoError(t, err)
	require.NotNil(t, jobs.Opened)
	defer jobs.Opened.Close()

	snapshot := jobs.Opened.Snapshot()
	assert.Equal(t, jobID, snapshot.Listing.ID)
	assert.Equal(t, StateSingleThread, snapshot.Resolution.State)
	assert.Equal(t, "bob", snapshot.CounterpartName)
	require.Len(t, snapshot.Messages, 1)

	again, err := h.lists.LoadCollection(ctx, entity.KindJob)
	require.NoError(t, err)
	assert.Nil(t, again.Opened)
	assert.Equal(t, 1, h.api.Calls(fakeapi.RouteConversations))
}
