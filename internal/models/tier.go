package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Sales channels for a ticket tier.
const (
	TierTypeOnline = "online"
	TierTypeDoor   = "door"
)

// TicketTier is a purchasable ticket category for an event. MaxStock nil
// means unlimited stock; SoldCount is maintained by the webhook reconciler.
type TicketTier struct {
	bun.BaseModel `bun:"table:ticket_tiers"`

	ID              string    `bun:"id,pk" json:"id"`
	EventID         string    `bun:"event_id,notnull" json:"event_id"`
	Name            string    `bun:"name,notnull" json:"name"`
	TierType        string    `bun:"tier_type,notnull" json:"tier_type"`
	Price           float64   `bun:"price,notnull" json:"price"`
	StripeProductID string    `bun:"stripe_product_id,nullzero" json:"stripe_product_id,omitempty"`
	StripePriceID   string    `bun:"stripe_price_id,nullzero" json:"stripe_price_id,omitempty"`
	MaxStock        *int      `bun:"max_stock,nullzero" json:"max_stock,omitempty"`
	SoldCount       int       `bun:"sold_count,notnull,default:0" json:"sold_count"`
	SortOrder       int       `bun:"sort_order,notnull,default:0" json:"sort_order"`
	IsActive        bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Available returns the remaining stock, or -1 when stock is unlimited.
func (t *TicketTier) Available() int {
	if t.MaxStock == nil {
		return -1
	}
	return *t.MaxStock - t.SoldCount
}
