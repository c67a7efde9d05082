package entity

import "time"

type NotificationKind string

const (
	NotificationJobMessage   NotificationKind = "job_message"
	NotificationIssueMessage NotificationKind = "issue_message"
)

// ListingKind maps the notification to the collection it points into.
func (k NotificationKind) ListingKind() (ListingKind, bool) {
	switch k {
	case NotificationJobMessage:
		return KindJob, true
	case NotificationIssueMessage:
		return KindIssue, true
	}
	return "", false
}

type Notification struct {
	ID             int64            `json:"id"`
	Kind           NotificationKind `json:"kind"`
	ListingID      int64            `json:"listing_id"`
	ListingTitle   string           `json:"listing_title,omitempty"`
	SenderUsername string           `json:"sender_username,omitempty"`
	Message        string           `json:"message"`
	IsRead         bool             `json:"is_read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// PendingOpen marks a listing whose chat should open once its collection
// has been loaded.
type PendingOpen struct {
	Kind      ListingKind `json:"kind"`
	ListingID int64       `json:"listing_id"`
}
