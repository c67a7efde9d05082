package backend

import (
	"encoding/json"
	"strconv"
	"time"

	"jobmarket/internal/domain/entity"
)

// optionalString decodes a JSON string, number or null. Salaries arrive as
// free text on jobs and as decimals on issues.
type optionalString struct {
	Value *string
}

func (s *optionalString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		s.Value = nil
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Value = &text
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	text = number.String()
	s.Value = &text
	return nil
}

func (s optionalString) String() string {
	if s.Value == nil {
		return ""
	}
	return *s.Value
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type ProfilePayload struct {
	ID             int64          `json:"id"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	PhoneNumber    optionalString `json:"phone_number"`
	Location       optionalString `json:"location"`
	SelectedAvatar optionalString `json:"selected_avatar"`
}

func (p ProfilePayload) ToEntity() *entity.UserProfile {
	return &entity.UserProfile{
		ID:             p.ID,
		Username:       p.Username,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber.String(),
		Location:       p.Location.String(),
		SelectedAvatar: p.SelectedAvatar.String(),
	}
}

// ListingPayload covers both serializers: jobs report the creator as
// created_by and the category as category_name, issues use user and category.
type ListingPayload struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     optionalString `json:"category"`
	CategoryName string         `json:"category_name"`
	Salary       optionalString `json:"salary"`
	CreatedBy    *int64         `json:"created_by"`
	User         *int64         `json:"user"`
	Status       string         `json:"status"`
	IsActive     *bool          `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (p ListingPayload) ToEntity(kind entity.ListingKind) entity.Listing {
	listing := entity.Listing{
		Kind:        kind,
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.CategoryName,
		Salary:      p.Salary.Value,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
	if listing.Category == "" {
		listing.Category = p.Category.String()
	}
	switch {
	case p.CreatedBy != nil:
		listing.CreatorID = *p.CreatedBy
	case p.User != nil:
		listing.CreatorID = *p.User
	}
	if listing.Status == "" && p.IsActive != nil {
		listing.Status = "inactive"
		if *p.IsActive {
			listing.Status = "active"
		}
	}
	return listing
}

type ConversationPayload struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	LatestMessage *struct {
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"latest_message"`
}

func (p ConversationPayload) ToEntity() entity.ConversationSummary {
	summary := entity.ConversationSummary{
		CounterpartID:       p.UserID,
		CounterpartUsername: p.Username,
	}
	if p.LatestMessage != nil {
		summary.LatestMessage = &entity.MessagePreview{
			Text:      p.LatestMessage.Text,
			CreatedAt: p.LatestMessage.CreatedAt,
		}
	}
	return summary
}

type MessagePayload struct {
	ID             int64     `json:"id"`
	Text           string    `json:"text"`
	IsSender       bool      `json:"is_sender"`
	Sender         string    `json:"sender"`
	SenderUsername string    `json:"sender_username"`
	CreatedAt      time.Time `json:"created_at"`
}

func (p MessagePayload) ToEntity() entity.Message {
	username := p.SenderUsername
	if username == "" {
		username = p.Sender
	}
	return entity.Message{
		ID:             p.ID,
		Text:           p.Text,
		SenderIsViewer: p.IsSender,
		SenderUsername: username,
		CreatedAt:      p.CreatedAt,
	}
}

// SendMessageRequest routes a creator's message to one responder when UserID
// is set.
type SendMessageRequest struct {
	Text   string `json:"text"`
	UserID *int64 `json:"user_id,omitempty"`
}

type NotificationPayload struct {
	ID             int64                   `json:"id"`
	Type           entity.NotificationKind `json:"notification_type"`
	Message        string                  `json:"message"`
	IsRead         bool                    `json:"is_read"`
	CreatedAt      time.Time               `json:"created_at"`
	SenderUsername string                  `json:"sender_username"`
	JobTitle       string                  `json:"job_title"`
	IssueTitle     string                  `json:"issue_title"`
	Job            *int64                  `json:"job"`
	Issue          *int64                  `json:"issue"`
}

func (p NotificationPayload) ToEntity() entity.Notification {
	n := entity.Notification{
		ID:             p.ID,
		Kind:           p.Type,
		Message:        p.Message,
		IsRead:         p.IsRead,
		CreatedAt:      p.CreatedAt,
		SenderUsername: p.SenderUsername,
	}
	switch {
	case p.Job != nil:
		n.ListingID = *p.Job
		n.ListingTitle = p.JobTitle
	case p.Issue != nil:
		n.ListingID = *p.Issue
		n.ListingTitle = p.IssueTitle
	}
	return n
}

// UnreadCountPayload accepts {"count": n} and {"unread_count": n}.
type UnreadCountPayload struct {
	Count       *int `json:"count"`
	UnreadCount *int `json:"unread_count"`
}

func (p UnreadCountPayload) Value() int {
	if p.Count != nil {
		return *p.Count
	}
	if p.UnreadCount != nil {
		return *p.UnreadCount
	}
	return 0
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
