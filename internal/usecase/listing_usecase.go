package usecase

import (
	"context"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
)

type ListingUseCase struct {
	guard         *SessionGuard
	notifications *NotificationUseCase
	chats         *ChatUseCase
}

func NewListingUseCase(guard *SessionGuard, notifications *NotificationUseCase, chats *ChatUseCase) *ListingUseCase {
	return &ListingUseCase{
		guard:         guard,
		notifications: notifications,
		chats:         chats,
	}
}

// Collection is a loaded listing page plus the chat a pending notification
// asked to open, if any.
type Collection struct {
	Kind     entity.ListingKind `json:"kind"`
	Listings []entity.Listing   `json:"listings"`
	Opened   *ChatView          `json:"-"`
}

func (uc *ListingUseCase) List(ctx context.Context, kind entity.ListingKind) ([]entity.Listing, error) {
	if !kind.Valid() {
		return nil, apperrors.BadRequest("Unknown listing kind", nil)
	}

	var payload []backend.ListingPayload
	if err := uc.guard.Do(ctx, backend.ListListingsCall(kind), &payload); err != nil {
		return nil, err
	}

	listings := make([]entity.Listing, 0, len(payload))
	for _, p := range payload {
		listings = append(listings, p.ToEntity(kind))
	}
	return listings, nil
}

func (uc *ListingUseCase) Get(ctx context.Context, ref entity.ListingRef) (entity.Listing, error) {
	if !ref.Kind.Valid() {
		return entity.Listing{}, apperrors.BadRequest("Unknown listing kind", nil)
	}

	var payload backend.ListingPayload
	if err := uc.guard.Do(ctx, backend.GetListingCall(ref), &payload); err != nil {
		return entity.Listing{}, err
	}
	return payload.ToEntity(ref.Kind), nil
}

// Delete removes a listing the viewer created. The backend answers 403 for
// anyone else.
func (uc *ListingUseCase) Delete(ctx context.Context, ref entity.ListingRef) error {
	if !ref.Kind.Valid() {
		return apperrors.BadRequest("Unknown listing kind", nil)
	}
	return uc.guard.Do(ctx, backend.DeleteListingCall(ref), nil)
}

// LoadCollection lists one kind of listing and opens the chat a clicked
// notification is waiting on. Failing to open that chat does not fail the
// collection.
func (uc *ListingUseCase) LoadCollection(ctx context.Context, kind entity.ListingKind) (*Collection, error) {
	listings, err := uc.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	collection := &Collection{Kind: kind, Listings: listings}

	listing, ok := uc.notifications.ConsumePendingOpen(kind, listings)
	if !ok {
		return collection, nil
	}

	view, err := uc.chats.Open(ctx, listing)
	if err != nil {
		logger.Warn("Opening chat for %s %d failed: %v", kind, listing.ID, err)
		return collection, nil
	}
	collection.Opened = view
	return collection, nil
}
