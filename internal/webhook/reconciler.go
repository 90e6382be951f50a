package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v82"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
	"verbs-tickets/internal/store"
)

// WebhookError carries the HTTP status and body the webhook endpoint should
// answer with. Stripe retries on non-2xx, so statuses are chosen carefully:
// signature and payload problems are 4xx (retrying cannot help), transient
// store failures surface as plain errors and become 500s.
type WebhookError struct {
	Status  int
	Message string
}

func (e *WebhookError) Error() string {
	return e.Message
}

// DBLayer is the write surface the reconciler needs.
type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetTier(ctx context.Context, id string) (*models.TicketTier, error)
	UpsertOrderBySession(ctx context.Context, order models.Order) (*models.Order, bool, error)
	IncrementSoldCount(ctx context.Context, tierID string, qty int) (bool, error)
	ForceIncrementSoldCount(ctx context.Context, tierID string, qty int) error
	DecrementSoldCount(ctx context.Context, tierID string, qty int) error
	GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	SetOrderRefund(ctx context.Context, orderID, status string, refundedAmount float64) error
}

// SignatureVerifier validates a raw webhook payload against its signature
// header. Injected so tests can bypass real signing.
type SignatureVerifier func(payload []byte, sigHeader, secret string) (stripe.Event, error)

// Reconciler turns verified Stripe events into inventory and order state.
// The payment is the source of truth: once money moved, the ledger follows.
type Reconciler struct {
	db               DBLayer
	verify           SignatureVerifier
	secret           string
	completedEffects []Effect
	refundedEffects  []Effect
	logger           *logger.Logger
}

func NewReconciler(db DBLayer, verify SignatureVerifier, secret string, log *logger.Logger) *Reconciler {
	return &Reconciler{
		db:     db,
		verify: verify,
		secret: secret,
		logger: log,
	}
}

// OnOrderCompleted registers effects to run after a completed order is
// recorded.
func (r *Reconciler) OnOrderCompleted(effects ...Effect) {
	r.completedEffects = append(r.completedEffects, effects...)
}

// OnOrderRefunded registers effects to run after a refund is recorded.
func (r *Reconciler) OnOrderRefunded(effects ...Effect) {
	r.refundedEffects = append(r.refundedEffects, effects...)
}

// Handle verifies and dispatches one webhook delivery. Event types the
// service does not care about are acknowledged silently.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	if r.secret == "" {
		return &WebhookError{Status: http.StatusInternalServerError, Message: "Webhook not configured"}
	}
	if sigHeader == "" {
		return &WebhookError{Status: http.StatusBadRequest, Message: "Missing signature"}
	}

	event, err := r.verify(payload, sigHeader, r.secret)
	if err != nil {
		r.logger.Warn("WEBHOOK", fmt.Sprintf("Signature verification failed: %v", err))
		return &WebhookError{Status: http.StatusBadRequest, Message: "Invalid signature"}
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return r.handleSessionCompleted(ctx, event)
	case stripe.EventTypeChargeRefunded:
		return r.handleChargeRefunded(ctx, event)
	default:
		r.logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring event type %s", event.Type))
		return nil
	}
}

func (r *Reconciler) handleSessionCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return &WebhookError{Status: http.StatusBadRequest, Message: "Invalid payload"}
	}

	eventID := sess.Metadata["event_id"]
	tierID := sess.Metadata["ticket_tier_id"]
	if eventID == "" || tierID == "" {
		return &WebhookError{Status: http.StatusBadRequest, Message: "Missing metadata"}
	}

	quantity, err := strconv.Atoi(sess.Metadata["quantity"])
	if err != nil || quantity < 1 {
		quantity = 1
	}

	order := models.Order{
		EventID:         eventID,
		TicketTierID:    tierID,
		StripeSessionID: sess.ID,
		Quantity:        quantity,
		AmountPaid:      float64(sess.AmountTotal) / 100,
		Status:          models.OrderStatusCompleted,
	}
	if sess.PaymentIntent != nil {
		order.StripePaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.CustomerDetails != nil {
		order.CustomerEmail = sess.CustomerDetails.Email
		order.CustomerName = sess.CustomerDetails.Name
	}
	if order.CustomerEmail == "" {
		order.CustomerEmail = sess.CustomerEmail
	}

	saved, created, err := r.db.UpsertOrderBySession(ctx, order)
	if err != nil {
		return err
	}
	if !created {
		// Stripe redelivered an event we already processed.
		r.logger.Info("WEBHOOK", fmt.Sprintf("Duplicate delivery for session %s, order #%d already recorded", sess.ID, saved.OrderNumber))
		return nil
	}

	incremented, err := r.db.IncrementSoldCount(ctx, tierID, quantity)
	if err != nil {
		return err
	}
	if !incremented {
		// The tier sold out between checkout and payment settlement. The
		// customer already paid, so record the sale anyway and flag it.
		r.logger.Warn("WEBHOOK", fmt.Sprintf("Tier %s oversold by settled payment, session %s", tierID, sess.ID))
		if err := r.db.ForceIncrementSoldCount(ctx, tierID, quantity); err != nil {
			return err
		}
	}

	r.logger.Info("WEBHOOK", fmt.Sprintf("Order #%d recorded: session %s, tier %s x%d", saved.OrderNumber, sess.ID, tierID, quantity))
	r.runEffects(ctx, r.completedEffects, &OrderContext{Order: saved, Event: r.loadEvent(ctx, eventID), Tier: r.loadTier(ctx, tierID)})
	return nil
}

func (r *Reconciler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return &WebhookError{Status: http.StatusBadRequest, Message: "Invalid payload"}
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return &WebhookError{Status: http.StatusBadRequest, Message: "Missing payment intent"}
	}

	order, err := r.db.GetOrderByPaymentIntent(ctx, charge.PaymentIntent.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &WebhookError{Status: http.StatusNotFound, Message: "Order not found"}
	}
	if err != nil {
		return err
	}

	refundedAmount := float64(charge.AmountRefunded) / 100
	status := RefundStatus(refundedAmount, order.AmountPaid)

	// charge.amount_refunded is cumulative, so compute the newly released
	// tickets as the difference against what earlier deliveries released.
	previouslyReturned := TicketsToReturn(order.RefundedAmount, order.AmountPaid, order.Quantity, order.Status == models.OrderStatusRefunded)
	totalReturned := TicketsToReturn(refundedAmount, order.AmountPaid, order.Quantity, status == models.OrderStatusRefunded)
	delta := totalReturned - previouslyReturned

	if delta > 0 {
		if err := r.db.DecrementSoldCount(ctx, order.TicketTierID, delta); err != nil {
			return err
		}
	}
	if err := r.db.SetOrderRefund(ctx, order.ID, status, refundedAmount); err != nil {
		return err
	}

	order.Status = status
	order.RefundedAmount = refundedAmount
	r.logger.Info("WEBHOOK", fmt.Sprintf("Refund recorded for order #%d: %.2f refunded, %d ticket(s) released", order.OrderNumber, refundedAmount, delta))
	r.runEffects(ctx, r.refundedEffects, &OrderContext{Order: order, Event: r.loadEvent(ctx, order.EventID), TicketsReturned: delta})
	return nil
}

// runEffects executes post-commit actions. An effect failure is logged and
// swallowed so a flaky mailer or broker never makes Stripe retry a webhook
// whose ledger work already committed.
func (r *Reconciler) runEffects(ctx context.Context, effects []Effect, oc *OrderContext) {
	for _, effect := range effects {
		if err := effect.Run(ctx, oc); err != nil {
			r.logger.Error("WEBHOOK", fmt.Sprintf("Effect %s failed for order #%d: %v", effect.Name(), oc.Order.OrderNumber, err))
		}
	}
}

func (r *Reconciler) loadEvent(ctx context.Context, id string) *models.Event {
	event, err := r.db.GetEvent(ctx, id)
	if err != nil {
		r.logger.Warn("WEBHOOK", fmt.Sprintf("Failed to load event %s for effects: %v", id, err))
		return nil
	}
	return event
}

func (r *Reconciler) loadTier(ctx context.Context, id string) *models.TicketTier {
	tier, err := r.db.GetTier(ctx, id)
	if err != nil {
		r.logger.Warn("WEBHOOK", fmt.Sprintf("Failed to load tier %s for effects: %v", id, err))
		return nil
	}
	return tier
}
