package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmarket/internal/testutil/fakeapi"
	apperrors "jobmarket/pkg/errors"
)

type chatFixture struct {
	*harness
	ana, bob, cleo *fakeapi.User
	jobID          int64
}

// newChatFixture seeds a job by ana with one message each from bob and cleo.
func newChatFixture(t *testing.T) *chatFixture {
	h := newHarness(t, NotificationOptions{})
	f := &chatFixture{harness: h}
	f.ana = h.api.AddUser("ana", "ana@example.com", "secret")
	f.bob = h.api.AddUser("bob", "bob@example.com", "secret")
	f.cleo = h.api.AddUser("cleo", "cleo@example.com", "secret")
	f.jobID = h.api.AddListing("job", f.ana.ID, "Paint the fence")
	h.api.AddMessage("job", f.jobID, f.bob.ID, f.bob.ID, "I can do it")
	h.api.AddMessage("job", f.jobID, f.cleo.ID, f.cleo.ID, "Me too")
	return f
}

func TestChat_CreatorSelectsAndReplies(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.ana)

	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)
	defer view.Close()

	res := view.Resolution()
	assert.Equal(t, StateNeedsSelection, res.State)
	require.Len(t, res.Summaries, 2)
	assert.Equal(t, []int64{f.bob.ID, f.cleo.ID}, []int64{res.Summaries[0].CounterpartID, res.Summaries[1].CounterpartID})
	assert.Empty(t, view.Messages())
	assert.Zero(t, f.api.Calls(fakeapi.RouteMessages))

	require.NoError(t, view.Select(ctx, f.bob.ID))
	messages := view.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "I can do it", messages[0].Text)
	assert.False(t, messages[0].SenderIsViewer)

	sent, err := view.Send(ctx, "Can you start Monday?")
	require.NoError(t, err)
	assert.True(t, sent.SenderIsViewer)

	messages = view.Messages()
	require.Len(t, messages, 2)
	last := messages[len(messages)-1]
	assert.Equal(t, "Can you start Monday?", last.Text)
	assert.True(t, last.SenderIsViewer)

	// The reply went to bob's thread only.
	assert.Equal(t, 1, f.api.Unread(f.bob.ID))
	assert.Zero(t, f.api.Unread(f.cleo.ID))
}

func TestChat_SendWhileSelectionPending(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.ana)

	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)

	_, err = view.Send(ctx, "hello?")

	assert.True(t, apperrors.Is(err, apperrors.CodeSelectionRequired))
	assert.Zero(t, f.api.Calls(fakeapi.RouteSend))
	assert.Zero(t, f.api.Calls(fakeapi.RouteMessages))

	require.NoError(t, view.Refresh(ctx))
	assert.Zero(t, f.api.Calls(fakeapi.RouteMessages))
}

func TestChat_ResponderSendsToCreator(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.bob)

	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)

	res := view.Resolution()
	assert.Equal(t, StateSingleThread, res.State)
	assert.Equal(t, f.ana.ID, res.CounterpartID)
	require.Len(t, view.Messages(), 1)
	assert.True(t, view.Messages()[0].SenderIsViewer)

	_, err = view.Send(ctx, "When can I start?")
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.Unread(f.ana.ID))
}

func TestChat_SendsAppendInCompletionOrder(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.bob)

	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)

	for _, text := range []string{"first", "second", "third"} {
		_, err := view.Send(ctx, text)
		require.NoError(t, err)
	}

	messages := view.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "first", messages[1].Text)
	assert.Equal(t, "second", messages[2].Text)
	assert.Equal(t, "third", messages[3].Text)
}

func TestChat_SendFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("blank text makes no call", func(t *testing.T) {
		f := newChatFixture(t)
		f.signIn(t, f.bob)
		view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
		require.NoError(t, err)

		_, err = view.Send(ctx, " \n\t ")

		assert.True(t, apperrors.Is(err, apperrors.CodeEmptyMessage))
		assert.Zero(t, f.api.Calls(fakeapi.RouteSend))
	})

	t.Run("server rejection keeps the thread", func(t *testing.T) {
		f := newChatFixture(t)
		f.signIn(t, f.bob)
		view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
		require.NoError(t, err)
		f.api.FailNext(fakeapi.RouteSend, http.StatusBadRequest, map[string]any{"text": []string{"Ensure this field has no more than 1000 characters."}})

		_, err = view.Send(ctx, "too long")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeRejected, appErr.Code)
		assert.Equal(t, "text: Ensure this field has no more than 1000 characters.", appErr.Message)
		assert.Len(t, view.Messages(), 1)
	})

	t.Run("network failure keeps the thread", func(t *testing.T) {
		f := newChatFixture(t)
		f.signIn(t, f.bob)
		view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
		require.NoError(t, err)
		f.api.FailNext(fakeapi.RouteSend, fakeapi.DropConnection, nil)

		_, err = view.Send(ctx, "hello")

		assert.True(t, apperrors.Is(err, apperrors.CodeNetwork))
		assert.Len(t, view.Messages(), 1)
	})
}

func TestChat_SendRenewsExpiredSession(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.bob)
	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)

	before := f.auth.AccessToken()
	f.api.ExpireAccessTokens()
	f.api.ResetCalls()

	sent, err := view.Send(ctx, "Still interested")
	require.NoError(t, err)

	assert.Equal(t, 1, f.api.Calls(fakeapi.RouteRefresh))
	assert.Equal(t, 2, f.api.Calls(fakeapi.RouteSend))
	assert.Equal(t, "Still interested", view.Messages()[len(view.Messages())-1].Text)
	assert.Equal(t, sent.ID, view.Messages()[len(view.Messages())-1].ID)

	stored, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, stored.AccessToken)
	assert.Equal(t, f.auth.AccessToken(), stored.AccessToken)
}

func TestChat_RefreshReplacesThread(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.bob)
	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)

	f.api.AddMessage("job", f.jobID, f.ana.ID, f.bob.ID, "Sure, come by")
	require.NoError(t, view.Refresh(ctx))

	messages := view.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Sure, come by", messages[1].Text)
	assert.False(t, messages[1].SenderIsViewer)
}

func TestChat_ClosedViewDiscardsResults(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.bob)
	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)

	f.api.AddMessage("job", f.jobID, f.ana.ID, f.bob.ID, "late reply")
	f.api.SetDelay(fakeapi.RouteMessages, time.Second)
	f.api.ResetCalls()

	done := make(chan error, 1)
	go func() { done <- view.Refresh(ctx) }()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.True(t, f.api.WaitForCalls(waitCtx, fakeapi.RouteMessages, 1))

	require.NoError(t, f.chats.Close(view.ID))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return after close")
	}
	assert.Len(t, view.Messages(), 1)
	assert.True(t, view.Closed())

	_, err = view.Send(ctx, "anyone?")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	_, err = f.chats.View(view.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestChat_RefreshStartedBeforeSendKeepsSentMessage(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.signIn(t, f.bob)

	view, err := f.chats.Open(ctx, f.job(f.jobID, f.ana.ID))
	require.NoError(t, err)
	defer view.Close()
	require.Len(t, view.Messages(), 1)

	f.api.SetReplyDelay(fakeapi.RouteMessages, 300*time.Millisecond)
	refreshed := make(chan error, 1)
	go func() {
		refreshed <- view.Refresh(ctx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.True(t, f.api.WaitForCalls(waitCtx, fakeapi.RouteMessages, 2))
	time.Sleep(50 * time.Millisecond)

	_, err = view.Send(ctx, "On my way")
	require.NoError(t, err)
	require.NoError(t, <-refreshed)

	messages := view.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "On my way", messages[1].Text)
}
