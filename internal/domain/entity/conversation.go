package entity

import "time"

type MessagePreview struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is one counterpart thread on a listing the viewer created.
type ConversationSummary struct {
	CounterpartID       int64           `json:"counterpart_id"`
	CounterpartUsername string          `json:"counterpart_username"`
	LatestMessage       *MessagePreview `json:"latest_message,omitempty"`
}
