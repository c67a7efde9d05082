package entity

// Credential holds the tokens for the single authenticated session of the
// process. Empty strings mean absent.
type Credential struct {
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	User         *UserProfile `json:"user,omitempty"`
}

func (c *Credential) Authenticated() bool {
	return c != nil && c.AccessToken != ""
}

// Clone returns a copy whose profile pointer can be handed out safely.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.User != nil {
		user := *c.User
		out.User = &user
	}
	return &out
}
