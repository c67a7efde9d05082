package usecase

import (
	"context"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
)

type ResolutionState string

const (
	// StateNotApplicable: the viewer created the listing and nobody wrote yet.
	StateNotApplicable  ResolutionState = "not_applicable"
	StateSingleThread   ResolutionState = "single_thread"
	StateNeedsSelection ResolutionState = "needs_selection"
	StateSelected       ResolutionState = "selected"
)

// Resolution decides which thread a listing view shows and who receives
// what the viewer sends.
type Resolution struct {
	Listing         entity.ListingRef            `json:"listing"`
	State           ResolutionState              `json:"state"`
	ViewerIsCreator bool                         `json:"viewer_is_creator"`
	CounterpartID   int64                        `json:"counterpart_id,omitempty"`
	Summaries       []entity.ConversationSummary `json:"summaries"`
	Degraded        bool                         `json:"degraded,omitempty"`
}

// ChannelOpen reports whether messages may be fetched and sent.
func (r Resolution) ChannelOpen() bool {
	return r.State != StateNeedsSelection
}

// ThreadFilter is the user_id the thread is narrowed to, 0 for unfiltered.
// Only the creator filters; everyone else sees the one thread they are in.
func (r Resolution) ThreadFilter() int64 {
	if !r.ViewerIsCreator || r.Degraded {
		return 0
	}
	switch r.State {
	case StateSingleThread, StateSelected:
		return r.CounterpartID
	}
	return 0
}

// RecipientID is the user_id to attach to a send, 0 to omit it.
func (r Resolution) RecipientID() int64 {
	return r.ThreadFilter()
}

// CounterpartName is the username shown as "Chatting with", empty when
// unknown.
func (r Resolution) CounterpartName() string {
	if r.CounterpartID == 0 {
		return ""
	}
	for _, summary := range r.Summaries {
		if summary.CounterpartID == r.CounterpartID {
			return summary.CounterpartUsername
		}
	}
	return ""
}

// Select binds the creator's view to one counterpart.
func (r Resolution) Select(counterpartID int64) (Resolution, error) {
	if !r.ViewerIsCreator {
		return r, apperrors.Forbidden("Only the listing creator can choose a conversation", nil)
	}
	for _, summary := range r.Summaries {
		if summary.CounterpartID == counterpartID {
			next := r
			next.State = StateSelected
			next.CounterpartID = counterpartID
			next.Degraded = false
			return next, nil
		}
	}
	return r, apperrors.NotFound("Conversation", nil)
}

type ConversationUseCase struct {
	guard *SessionGuard
}

func NewConversationUseCase(guard *SessionGuard) *ConversationUseCase {
	return &ConversationUseCase{guard: guard}
}

// ListConversations returns the creator's per-counterpart summaries.
func (uc *ConversationUseCase) ListConversations(ctx context.Context, ref entity.ListingRef) ([]entity.ConversationSummary, error) {
	var payload []backend.ConversationPayload
	if err := uc.guard.Do(ctx, backend.ConversationsCall(ref), &payload); err != nil {
		return nil, err
	}

	summaries := make([]entity.ConversationSummary, 0, len(payload))
	for _, p := range payload {
		summaries = append(summaries, p.ToEntity())
	}
	return summaries, nil
}

// Resolve never fails: when the summaries cannot be fetched the view falls
// back to the unfiltered thread.
func (uc *ConversationUseCase) Resolve(ctx context.Context, ref entity.ListingRef, viewerID, creatorID int64) Resolution {
	res := Resolution{
		Listing:         ref,
		ViewerIsCreator: viewerID == creatorID,
		Summaries:       []entity.ConversationSummary{},
	}

	summaries, err := uc.ListConversations(ctx, ref)
	if err != nil {
		logger.Warn("Conversations for %s %d unavailable, showing full thread: %v", ref.Kind, ref.ID, err)
		res.State = StateSingleThread
		res.Degraded = true
		if !res.ViewerIsCreator {
			res.CounterpartID = creatorID
		}
		return res
	}
	res.Summaries = summaries

	// Non-creators talk to the creator and never filter.
	if !res.ViewerIsCreator {
		res.State = StateSingleThread
		res.CounterpartID = creatorID
		return res
	}

	switch len(summaries) {
	case 0:
		res.State = StateNotApplicable
	case 1:
		res.State = StateSingleThread
		res.CounterpartID = summaries[0].CounterpartID
	default:
		res.State = StateNeedsSelection
	}
	return res
}
