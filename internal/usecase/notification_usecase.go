package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
)

const DefaultPollInterval = 10 * time.Second

type NotificationOptions struct {
	PollInterval time.Duration
	// RollbackMarkRead restores the previous read flag when the server
	// rejects a mark-read. When false the optimistic flag is kept.
	RollbackMarkRead bool
}

// NotificationUseCase keeps the local copy of the feed and the unread count
// in step with the server, and remembers which chat a clicked notification
// should open.
type NotificationUseCase struct {
	guard    *SessionGuard
	auth     *AuthUseCase
	interval time.Duration
	rollback bool

	mu            sync.RWMutex
	notifications []entity.Notification
	unread        int
	pending       *entity.PendingOpen
	lastPoll      time.Time
	listeners     []func(FeedState)
}

// FeedState is what the UI renders for the notification bell.
type FeedState struct {
	UnreadCount   int                   `json:"unread_count"`
	Notifications []entity.Notification `json:"notifications"`
	LastPoll      *time.Time            `json:"last_poll,omitempty"`
}

func NewNotificationUseCase(guard *SessionGuard, auth *AuthUseCase, opts NotificationOptions) *NotificationUseCase {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &NotificationUseCase{
		guard:         guard,
		auth:          auth,
		interval:      interval,
		rollback:      opts.RollbackMarkRead,
		notifications: []entity.Notification{},
	}
}

// Run polls the list and the unread count independently until ctx is done.
func (uc *NotificationUseCase) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uc.poll(ctx, "notifications", uc.RefreshNotifications)
		return nil
	})
	g.Go(func() error {
		uc.poll(ctx, "unread count", uc.RefreshUnreadCount)
		return nil
	})
	return g.Wait()
}

func (uc *NotificationUseCase) poll(ctx context.Context, name string, refresh func(context.Context) error) {
	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	for {
		if uc.auth.Authenticated() {
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Polling %s failed: %v", name, err)
			}
		} else {
			uc.reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reset forgets the previous session's feed.
func (uc *NotificationUseCase) reset() {
	uc.mu.Lock()
	dirty := len(uc.notifications) > 0 || uc.unread != 0 || uc.pending != nil
	uc.notifications = []entity.Notification{}
	uc.unread = 0
	uc.pending = nil
	uc.mu.Unlock()

	if dirty {
		uc.changed()
	}
}

// OnChange registers fn to receive the feed after every update. Listeners
// run on the updating goroutine and must not block.
func (uc *NotificationUseCase) OnChange(fn func(FeedState)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.listeners = append(uc.listeners, fn)
}

func (uc *NotificationUseCase) Feed() FeedState {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	state := FeedState{
		UnreadCount:   uc.unread,
		Notifications: make([]entity.Notification, len(uc.notifications)),
	}
	copy(state.Notifications, uc.notifications)
	if !uc.lastPoll.IsZero() {
		lastPoll := uc.lastPoll
		state.LastPoll = &lastPoll
	}
	return state
}

func (uc *NotificationUseCase) changed() {
	uc.mu.RLock()
	listeners := make([]func(FeedState), len(uc.listeners))
	copy(listeners, uc.listeners)
	uc.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	state := uc.Feed()
	for _, fn := range listeners {
		fn(state)
	}
}

// RefreshNotifications replaces the local collection with the server's.
func (uc *NotificationUseCase) RefreshNotifications(ctx context.Context) error {
	var payload []backend.NotificationPayload
	if err := uc.guard.Do(ctx, backend.NotificationsCall(), &payload); err != nil {
		return err
	}

	snapshot := make([]entity.Notification, 0, len(payload))
	for _, p := range payload {
		snapshot = append(snapshot, p.ToEntity())
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	uc.mu.Lock()
	uc.notifications = snapshot
	uc.lastPoll = time.Now()
	uc.mu.Unlock()

	uc.changed()
	return nil
}

func (uc *NotificationUseCase) RefreshUnreadCount(ctx context.Context) error {
	var payload backend.UnreadCountPayload
	if err := uc.guard.Do(ctx, backend.UnreadCountCall(), &payload); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	uc.mu.Lock()
	uc.unread = payload.Value()
	uc.mu.Unlock()

	uc.changed()
	return nil
}

func (uc *NotificationUseCase) Notifications() []entity.Notification {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]entity.Notification, len(uc.notifications))
	copy(out, uc.notifications)
	return out
}

func (uc *NotificationUseCase) UnreadCount() int {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.unread
}

func (uc *NotificationUseCase) LastPoll() time.Time {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.lastPoll
}

func (uc *NotificationUseCase) Get(id int64) (entity.Notification, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	for _, n := range uc.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return entity.Notification{}, false
}

// MarkAsRead flips the local flag first, then tells the server. The unread
// count is re-fetched whatever the outcome.
func (uc *NotificationUseCase) MarkAsRead(ctx context.Context, id int64) error {
	previous, found := uc.setRead(id, true)

	err := uc.guard.Do(ctx, backend.MarkReadCall(id), nil)
	if err != nil && found && uc.rollback {
		uc.setRead(id, previous)
	}

	if countErr := uc.RefreshUnreadCount(ctx); countErr != nil {
		logger.Warn("Refreshing unread count after mark-read failed: %v", countErr)
		uc.changed()
	}
	return err
}

func (uc *NotificationUseCase) MarkAllAsRead(ctx context.Context) error {
	uc.mu.Lock()
	previous := make(map[int64]bool, len(uc.notifications))
	for i := range uc.notifications {
		previous[uc.notifications[i].ID] = uc.notifications[i].IsRead
		uc.notifications[i].IsRead = true
	}
	uc.mu.Unlock()

	err := uc.guard.Do(ctx, backend.MarkAllReadCall(), nil)
	if err != nil && uc.rollback {
		uc.mu.Lock()
		for i := range uc.notifications {
			if was, ok := previous[uc.notifications[i].ID]; ok {
				uc.notifications[i].IsRead = was
			}
		}
		uc.mu.Unlock()
	}

	if countErr := uc.RefreshUnreadCount(ctx); countErr != nil {
		logger.Warn("Refreshing unread count after mark-all-read failed: %v", countErr)
		uc.changed()
	}
	return err
}

// setRead sets the flag on a local notification and returns its old value.
func (uc *NotificationUseCase) setRead(id int64, read bool) (previous bool, found bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for i := range uc.notifications {
		if uc.notifications[i].ID == id {
			previous = uc.notifications[i].IsRead
			uc.notifications[i].IsRead = read
			return previous, true
		}
	}
	return false, false
}

// Activate handles a click on a notification: it records which chat to open
// once the matching collection is loaded and marks the notification read.
func (uc *NotificationUseCase) Activate(ctx context.Context, id int64) (entity.PendingOpen, error) {
	n, ok := uc.Get(id)
	if !ok {
		return entity.PendingOpen{}, apperrors.NotFound("Notification", nil)
	}
	kind, ok := n.Kind.ListingKind()
	if !ok || n.ListingID == 0 {
		return entity.PendingOpen{}, apperrors.BadRequest("Notification does not point at a listing", nil)
	}

	marker := entity.PendingOpen{Kind: kind, ListingID: n.ListingID}
	uc.mu.Lock()
	uc.pending = &marker
	uc.mu.Unlock()

	if !n.IsRead {
		if err := uc.MarkAsRead(ctx, id); err != nil {
			logger.Warn("Marking notification %d read failed: %v", id, err)
		}
	}
	return marker, nil
}

func (uc *NotificationUseCase) PendingOpen() (entity.PendingOpen, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.pending == nil {
		return entity.PendingOpen{}, false
	}
	return *uc.pending, true
}

// ConsumePendingOpen returns the listing the marker points at. The marker is
// cleared as soon as a collection of its kind is offered, matched or not.
func (uc *NotificationUseCase) ConsumePendingOpen(kind entity.ListingKind, listings []entity.Listing) (entity.Listing, bool) {
	uc.mu.Lock()
	marker := uc.pending
	if marker == nil || marker.Kind != kind {
		uc.mu.Unlock()
		return entity.Listing{}, false
	}
	uc.pending = nil
	uc.mu.Unlock()

	for _, listing := range listings {
		if listing.Kind == kind && listing.ID == marker.ListingID {
			return listing, true
		}
	}
	logger.Info("%s %d from notification is not in the loaded collection", kind, marker.ListingID)
	return entity.Listing{}, false
}
