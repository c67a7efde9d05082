package entity

import "time"

type Message struct {
	ID             int64     `json:"id"`
	Text           string    `json:"text"`
	SenderIsViewer bool      `json:"sender_is_viewer"`
	SenderUsername string    `json:"sender_username,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
