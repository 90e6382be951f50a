package webhook

import (
	"context"

	"verbs-tickets/internal/models"
)

// OrderContext is everything an effect may need about a reconciled order.
// Event and Tier are best-effort lookups and may be nil if loading them
// failed; effects must tolerate that.
type OrderContext struct {
	Order           *models.Order
	Event           *models.Event
	Tier            *models.TicketTier
	TicketsReturned int
}

// Effect is a non-critical action run after the order ledger is updated.
// Effect failures are logged and swallowed; they never fail the webhook and
// never roll back the order.
type Effect interface {
	Name() string
	Run(ctx context.Context, oc *OrderContext) error
}

// Mailer sends transactional order email.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, event *models.Event, tier *models.TicketTier) error
	SendRefundNotice(ctx context.Context, order *models.Order, event *models.Event) error
}

// ConfirmationEmailEffect sends the ticket confirmation email.
type ConfirmationEmailEffect struct {
	Mailer Mailer
}

func (e *ConfirmationEmailEffect) Name() string { return "confirmation-email" }

func (e *ConfirmationEmailEffect) Run(ctx context.Context, oc *OrderContext) error {
	return e.Mailer.SendOrderConfirmation(ctx, oc.Order, oc.Event, oc.Tier)
}

// RefundEmailEffect tells the customer their refund was processed.
type RefundEmailEffect struct {
	Mailer Mailer
}

func (e *RefundEmailEffect) Name() string { return "refund-email" }

func (e *RefundEmailEffect) Run(ctx context.Context, oc *OrderContext) error {
	return e.Mailer.SendRefundNotice(ctx, oc.Order, oc.Event)
}

// OrderPublisher publishes order lifecycle events to the message broker.
type OrderPublisher interface {
	PublishOrderCompleted(ctx context.Context, order *models.Order) error
	PublishOrderRefunded(ctx context.Context, order *models.Order, ticketsReturned int) error
}

// PublishCompletedEffect emits the order-completed broker event.
type PublishCompletedEffect struct {
	Publisher OrderPublisher
}

func (e *PublishCompletedEffect) Name() string { return "publish-order-completed" }

func (e *PublishCompletedEffect) Run(ctx context.Context, oc *OrderContext) error {
	return e.Publisher.PublishOrderCompleted(ctx, oc.Order)
}

// PublishRefundedEffect emits the order-refunded broker event.
type PublishRefundedEffect struct {
	Publisher OrderPublisher
}

func (e *PublishRefundedEffect) Name() string { return "publish-order-refunded" }

func (e *PublishRefundedEffect) Run(ctx context.Context, oc *OrderContext) error {
	return e.Publisher.PublishOrderRefunded(ctx, oc.Order, oc.TicketsReturned)
}

// AudienceSyncer adds a purchaser to the marketing audience.
type AudienceSyncer interface {
	AddContact(ctx context.Context, email, name string) error
}

// AudienceSyncEffect keeps the mailing audience in step with purchasers.
type AudienceSyncEffect struct {
	Syncer AudienceSyncer
}

func (e *AudienceSyncEffect) Name() string { return "audience-sync" }

func (e *AudienceSyncEffect) Run(ctx context.Context, oc *OrderContext) error {
	return e.Syncer.AddContact(ctx, oc.Order.CustomerEmail, oc.Order.CustomerName)
}
