package models

import (
	"time"

	"github.com/uptrace/bun"
)

// NewsletterSubscriber rows are soft-deleted: unsubscribing stamps
// UnsubscribedAt instead of removing the row, so a later subscribe
// becomes a resubscribe.
type NewsletterSubscriber struct {
	bun.BaseModel `bun:"table:newsletter_subscribers"`

	ID               string     `bun:"id,pk" json:"id"`
	Email            string     `bun:"email,unique,notnull" json:"email"`
	Source           string     `bun:"source,nullzero" json:"source,omitempty"`
	SubscribedAt     time.Time  `bun:"subscribed_at,notnull" json:"subscribed_at"`
	UnsubscribedAt   *time.Time `bun:"unsubscribed_at,nullzero" json:"unsubscribed_at,omitempty"`
	UnsubscribeToken string     `bun:"unsubscribe_token,notnull" json:"-"`
}
