package entity

// UserProfile is the authenticated user's snapshot, fetched once per
// credential validity period.
type UserProfile struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	Location       string `json:"location,omitempty"`
	SelectedAvatar string `json:"selected_avatar,omitempty"`
}
