package entity

import "time"

type ListingKind string

const (
	KindJob   ListingKind = "job"
	KindIssue ListingKind = "issue"
)

func (k ListingKind) Valid() bool {
	return k == KindJob || k == KindIssue
}

// Collection is the path segment of the listing collection ("jobs", "issues").
func (k ListingKind) Collection() string {
	return string(k) + "s"
}

// ParseListingKind accepts both the singular and the collection form.
func ParseListingKind(s string) (ListingKind, bool) {
	switch s {
	case "job", "jobs":
		return KindJob, true
	case "issue", "issues":
		return KindIssue, true
	}
	return "", false
}

// ListingRef addresses a job or issue without carrying its contents.
type ListingRef struct {
	Kind ListingKind `json:"kind"`
	ID   int64       `json:"id"`
}

// Listing is a read-only cached copy of a job or issue.
type Listing struct {
	Kind        ListingKind `json:"kind"`
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Salary      *string     `json:"salary,omitempty"`
	CreatorID   int64       `json:"creator_id"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (l Listing) Ref() ListingRef {
	return ListingRef{Kind: l.Kind, ID: l.ID}
}
