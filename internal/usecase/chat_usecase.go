package usecase

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
)

type ChatUseCase struct {
	guard         *SessionGuard
	users         *UserUseCase
	conversations *ConversationUseCase

	mu    sync.RWMutex
	views map[string]*ChatView
}

func NewChatUseCase(guard *SessionGuard, users *UserUseCase, conversations *ConversationUseCase) *ChatUseCase {
	return &ChatUseCase{
		guard:         guard,
		users:         users,
		conversations: conversations,
		views:         make(map[string]*ChatView),
	}
}

// ChatSnapshot is a point-in-time copy of a view.
type ChatSnapshot struct {
	ID              string           `json:"id"`
	Listing         entity.Listing   `json:"listing"`
	Resolution      Resolution       `json:"resolution"`
	CounterpartName string           `json:"counterpart_name,omitempty"`
	Messages        []entity.Message `json:"messages"`
}

// FetchThread returns a listing's messages in server order, narrowed to one
// counterpart when counterpartID is non-zero.
func (uc *ChatUseCase) FetchThread(ctx context.Context, ref entity.ListingRef, counterpartID int64) ([]entity.Message, error) {
	var payload []backend.MessagePayload
	if err := uc.guard.Do(ctx, backend.MessagesCall(ref, counterpartID), &payload); err != nil {
		return nil, err
	}

	messages := make([]entity.Message, 0, len(payload))
	for _, p := range payload {
		messages = append(messages, p.ToEntity())
	}
	return messages, nil
}

// Open resolves the conversation for listing and, unless a counterpart still
// has to be chosen, loads its thread. The view stays registered until Close.
func (uc *ChatUseCase) Open(ctx context.Context, listing entity.Listing) (*ChatView, error) {
	viewer, err := uc.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	resolution := uc.conversations.Resolve(ctx, listing.Ref(), viewer.ID, listing.CreatorID)
	view := newChatView(uc, listing, resolution)

	if resolution.ChannelOpen() {
		messages, err := uc.FetchThread(ctx, listing.Ref(), resolution.ThreadFilter())
		if err != nil {
			view.cancel()
			return nil, err
		}
		view.messages = messages
	}

	uc.mu.Lock()
	uc.views[view.ID] = view
	uc.mu.Unlock()

	logger.Debug("Opened chat view %s for %s %d (%s)", view.ID, listing.Kind, listing.ID, resolution.State)
	return view, nil
}

func (uc *ChatUseCase) View(id string) (*ChatView, error) {
	uc.mu.RLock()
	view, ok := uc.views[id]
	uc.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("Chat view", nil)
	}
	return view, nil
}

func (uc *ChatUseCase) Close(id string) error {
	uc.mu.Lock()
	view, ok := uc.views[id]
	delete(uc.views, id)
	uc.mu.Unlock()
	if !ok {
		return apperrors.NotFound("Chat view", nil)
	}
	view.cancel()
	return nil
}

// CloseAll drops every open view, used on logout.
func (uc *ChatUseCase) CloseAll() {
	uc.mu.Lock()
	views := uc.views
	uc.views = make(map[string]*ChatView)
	uc.mu.Unlock()

	for _, view := range views {
		view.cancel()
	}
}

// ChatView is one open listing chat. Once closed, in-flight fetches and sends
// are cancelled and their results discarded.
type ChatView struct {
	ID      string
	Listing entity.Listing

	uc     *ChatUseCase
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	resolution Resolution
	messages   []entity.Message
	generation uint64
}

func newChatView(uc *ChatUseCase, listing entity.Listing, resolution Resolution) *ChatView {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatView{
		ID:         uuid.NewString(),
		Listing:    listing,
		uc:         uc,
		ctx:        ctx,
		cancel:     cancel,
		resolution: resolution,
		messages:   []entity.Message{},
	}
}

// bind derives a context that is also cancelled when the view closes.
func (v *ChatView) bind(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if v.ctx.Err() != nil {
		return nil, nil, errViewClosed()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func (v *ChatView) Closed() bool {
	return v.ctx.Err() != nil
}

// Close unregisters the view.
func (v *ChatView) Close() {
	if err := v.uc.Close(v.ID); err != nil {
		v.cancel()
	}
}

func (v *ChatView) Resolution() Resolution {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resolution
}

func (v *ChatView) Messages() []entity.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]entity.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

func (v *ChatView) Snapshot() ChatSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	messages := make([]entity.Message, len(v.messages))
	copy(messages, v.messages)
	return ChatSnapshot{
		ID:              v.ID,
		Listing:         v.Listing,
		Resolution:      v.resolution,
		CounterpartName: v.resolution.CounterpartName(),
		Messages:        messages,
	}
}

// Select binds the view to a counterpart and loads that thread. On failure
// the previous selection and messages stay in place.
func (v *ChatView) Select(ctx context.Context, counterpartID int64) error {
	ctx, done, err := v.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	v.mu.Lock()
	next, err := v.resolution.Select(counterpartID)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	messages, err := v.uc.FetchThread(ctx, v.Listing.Ref(), next.ThreadFilter())
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Closed() {
		return errViewClosed()
	}
	v.resolution = next
	v.messages = messages
	v.generation++
	return nil
}

// Refresh replaces the messages with the server's current thread. It is a
// no-op while a counterpart has yet to be selected.
func (v *ChatView) Refresh(ctx context.Context) error {
	ctx, done, err := v.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	v.mu.Lock()
	resolution := v.resolution
	generation := v.generation
	v.mu.Unlock()

	if !resolution.ChannelOpen() {
		return nil
	}

	messages, err := v.uc.FetchThread(ctx, v.Listing.Ref(), resolution.ThreadFilter())
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Closed() {
		return errViewClosed()
	}
	// A Select or Send that completed meanwhile makes this fetch stale.
	if generation != v.generation {
		return nil
	}
	v.messages = messages
	return nil
}

// Send posts text to the bound thread and appends the stored message.
func (v *ChatView) Send(ctx context.Context, text string) (entity.Message, error) {
	if strings.TrimSpace(text) == "" {
		return entity.Message{}, apperrors.EmptyMessage()
	}

	ctx, done, err := v.bind(ctx)
	if err != nil {
		return entity.Message{}, err
	}
	defer done()

	v.mu.Lock()
	resolution := v.resolution
	v.mu.Unlock()

	if !resolution.ChannelOpen() {
		return entity.Message{}, apperrors.SelectionRequired()
	}

	body := backend.SendMessageRequest{Text: text}
	if recipient := resolution.RecipientID(); recipient != 0 {
		body.UserID = &recipient
	}

	var payload backend.MessagePayload
	if err := v.uc.guard.Do(ctx, backend.SendMessageCall(v.Listing.Ref(), body), &payload); err != nil {
		return entity.Message{}, sendError(err)
	}
	message := payload.ToEntity()
	message.SenderIsViewer = true

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Closed() {
		return message, nil
	}
	if v.resolution.RecipientID() == resolution.RecipientID() {
		v.messages = append(v.messages, message)
		v.generation++
	}
	return message, nil
}

func errViewClosed() error {
	return apperrors.New(apperrors.CodeNotFound, "Chat view closed", http.StatusNotFound, nil)
}
