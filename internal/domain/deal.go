package domain

import "time"

type DealStatus string

const (
	StatusDraft         DealStatus = "DRAFT"
	StatusPendingReview DealStatus = "PENDING_REVIEW"
	StatusPublished     DealStatus = "PUBLISHED"
	StatusRejected      DealStatus = "REJECTED"
	StatusExpired       DealStatus = "EXPIRED"
	StatusRemoved       DealStatus = "REMOVED"
)

type Deal struct {
	ID            string     `db:"id"`
	CategoryID    string     `db:"category_id"`
	ShopID        string     `db:"shop_id"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	Price         float64    `db:"price"`
	OriginalPrice float64    `db:"original_price"`
	SubmitterID   string     `db:"submitter_id"`
	Status        DealStatus `db:"status"`
	CreatedAt     string     `db:"created_at"`
	PublishedAt   string     `db:"published_at"` // empty until first publish, then immutable
	ExpiresAt     string     `db:"expires_at"`   // empty = never expires
	UpdatedAt     string     `db:"updated_at"`
}

type Category struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type Shop struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	URL       string `db:"url"`
	CreatedAt string `db:"created_at"`
}

type Comment struct {
	ID        string `db:"id"`
	DealID    string `db:"deal_id"`
	UserID    string `db:"user_id"`
	Body      string `db:"body"`
	CreatedAt string `db:"created_at"`
}

// EngagementSnapshot is derived from the vote ledger and view/comment
// events; it is cached per deal, never hand-edited.
type EngagementSnapshot struct {
	DealID        string `db:"deal_id"`
	UpvoteCount   int    `db:"upvotes"`
	DownvoteCount int    `db:"downvotes"`
	ViewCount     int    `db:"views"`
	CommentCount  int    `db:"comments"`
}

func (s EngagementSnapshot) NetScore() int { return s.UpvoteCount - s.DownvoteCount }

// TimeLayout is how the engine writes timestamps into the store.
const TimeLayout = time.RFC3339

// ParseTime reads a stored timestamp, tolerating the sqlite
// CURRENT_TIMESTAMP layout used by seed rows.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Expired reports whether the deal's expiry has passed at now.
func (d Deal) Expired(now time.Time) bool {
	t, ok := ParseTime(d.ExpiresAt)
	return ok && !t.After(now)
}
