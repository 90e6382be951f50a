package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order lifecycle statuses. Orders are only ever created by the webhook
// reconciler after a completed payment; there is no pending state.
const (
	OrderStatusCompleted         = "completed"
	OrderStatusRefunded          = "refunded"
	OrderStatusPartiallyRefunded = "partially_refunded"
)

// Order is the durable record of one paid checkout session. StripeSessionID
// is unique and acts as the idempotency key for duplicate webhook delivery.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                    string    `bun:"id,pk" json:"id"`
	OrderNumber           int64     `bun:"order_number,nullzero" json:"order_number"`
	EventID               string    `bun:"event_id,notnull" json:"event_id"`
	TicketTierID          string    `bun:"ticket_tier_id,notnull" json:"ticket_tier_id"`
	StripeSessionID       string    `bun:"stripe_session_id,unique,notnull" json:"stripe_session_id"`
	StripePaymentIntentID string    `bun:"stripe_payment_intent_id,nullzero" json:"stripe_payment_intent_id,omitempty"`
	CustomerEmail         string    `bun:"customer_email,notnull" json:"customer_email"`
	CustomerName          string    `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	Quantity              int       `bun:"quantity,notnull" json:"quantity"`
	AmountPaid            float64   `bun:"amount_paid,notnull" json:"amount_paid"`
	Status                string    `bun:"status,notnull" json:"status"`
	RefundedAmount        float64   `bun:"refunded_amount,notnull,default:0" json:"refunded_amount"`
	CreatedAt             time.Time `bun:"created_at,notnull" json:"created_at"`
}
