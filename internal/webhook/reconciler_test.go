package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
	"verbs-tickets/internal/store"
)

// memDB is an in-memory DBLayer tracking the calls the reconciler makes.
type memDB struct {
	events map[string]*models.Event
	tiers  map[string]*models.TicketTier

	ordersBySession map[string]*models.Order
	nextOrderNumber int64

	forceIncrements int
	incrementCalls  int
}

func newMemDB() *memDB {
	return &memDB{
		events:          map[string]*models.Event{},
		tiers:           map[string]*models.TicketTier{},
		ordersBySession: map[string]*models.Order{},
		nextOrderNumber: 1000,
	}
}

func (m *memDB) GetEvent(_ context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, store.ErrNotFound
}

func (m *memDB) GetTier(_ context.Context, id string) (*models.TicketTier, error) {
	if t, ok := m.tiers[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (m *memDB) UpsertOrderBySession(_ context.Context, order models.Order) (*models.Order, bool, error) {
	if existing, ok := m.ordersBySession[order.StripeSessionID]; ok {
		return existing, false, nil
	}
	m.nextOrderNumber++
	order.OrderNumber = m.nextOrderNumber
	saved := order
	m.ordersBySession[order.StripeSessionID] = &saved
	return &saved, true, nil
}

func (m *memDB) IncrementSoldCount(_ context.Context, tierID string, qty int) (bool, error) {
	m.incrementCalls++
	tier, ok := m.tiers[tierID]
	if !ok {
		return false, nil
	}
	if tier.MaxStock != nil && tier.SoldCount+qty > *tier.MaxStock {
		return false, nil
	}
	tier.SoldCount += qty
	return true, nil
}

func (m *memDB) ForceIncrementSoldCount(_ context.Context, tierID string, qty int) error {
	m.forceIncrements++
	if tier, ok := m.tiers[tierID]; ok {
		tier.SoldCount += qty
	}
	return nil
}

func (m *memDB) DecrementSoldCount(_ context.Context, tierID string, qty int) error {
	if tier, ok := m.tiers[tierID]; ok {
		tier.SoldCount -= qty
		if tier.SoldCount < 0 {
			tier.SoldCount = 0
		}
	}
	return nil
}

func (m *memDB) GetOrderByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Order, error) {
	for _, order := range m.ordersBySession {
		if order.StripePaymentIntentID == paymentIntentID {
			return order, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memDB) SetOrderRefund(_ context.Context, orderID, status string, refundedAmount float64) error {
	for _, order := range m.ordersBySession {
		if order.ID == orderID {
			order.Status = status
			order.RefundedAmount = refundedAmount
			return nil
		}
	}
	return store.ErrNotFound
}

// recordingEffect counts runs and optionally fails.
type recordingEffect struct {
	runs int
	fail bool
	last *OrderContext
}

func (e *recordingEffect) Name() string { return "recording" }

func (e *recordingEffect) Run(_ context.Context, oc *OrderContext) error {
	e.runs++
	e.last = oc
	if e.fail {
		return errors.New("effect blew up")
	}
	return nil
}

func passVerifier(eventType string, data interface{}) SignatureVerifier {
	return func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		raw, _ := json.Marshal(data)
		return stripe.Event{Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}, nil
	}
}

func completedSession(sessionID string, quantity int) map[string]interface{} {
	return map[string]interface{}{
		"id":           sessionID,
		"amount_total": 5000,
		"payment_intent": map[string]interface{}{
			"id": "pi_123",
		},
		"customer_details": map[string]interface{}{
			"email": "buyer@example.com",
			"name":  "Test Buyer",
		},
		"metadata": map[string]string{
			"event_id":       "event-1",
			"ticket_tier_id": "tier-1",
			"quantity":       fmt.Sprintf("%d", quantity),
		},
	}
}

func seededDB() *memDB {
	db := newMemDB()
	max := 100
	db.events["event-1"] = &models.Event{ID: "event-1", Title: "Warehouse Night", Status: models.EventStatusPublished}
	db.tiers["tier-1"] = &models.TicketTier{ID: "tier-1", EventID: "event-1", Name: "GA", MaxStock: &max, SoldCount: 0}
	return db
}

func TestHandleRejectsBadConfiguration(t *testing.T) {
	db := seededDB()
	log := logger.NewLogger()

	t.Run("missing secret", func(t *testing.T) {
		r := NewReconciler(db, passVerifier("checkout.session.completed", nil), "", log)
		err := r.Handle(context.Background(), []byte("{}"), "sig")

		var webhookErr *WebhookError
		assert.ErrorAs(t, err, &webhookErr)
		assert.Equal(t, http.StatusInternalServerError, webhookErr.Status)
		assert.Equal(t, "Webhook not configured", webhookErr.Message)
	})

	t.Run("missing signature header", func(t *testing.T) {
		r := NewReconciler(db, passVerifier("checkout.session.completed", nil), "whsec_test", log)
		err := r.Handle(context.Background(), []byte("{}"), "")

		var webhookErr *WebhookError
		assert.ErrorAs(t, err, &webhookErr)
		assert.Equal(t, http.StatusBadRequest, webhookErr.Status)
		assert.Equal(t, "Missing signature", webhookErr.Message)
	})

	t.Run("invalid signature", func(t *testing.T) {
		failing := func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
			return stripe.Event{}, errors.New("no match")
		}
		r := NewReconciler(db, failing, "whsec_test", log)
		err := r.Handle(context.Background(), []byte("{}"), "bad-sig")

		var webhookErr *WebhookError
		assert.ErrorAs(t, err, &webhookErr)
		assert.Equal(t, "Invalid signature", webhookErr.Message)
	})
}

func TestHandleIgnoresUnknownEventTypes(t *testing.T) {
	db := seededDB()
	r := NewReconciler(db, passVerifier("invoice.paid", map[string]interface{}{}), "whsec_test", logger.NewLogger())

	err := r.Handle(context.Background(), []byte("{}"), "sig")
	assert.NoError(t, err)
	assert.Empty(t, db.ordersBySession)
}

func TestSessionCompletedRecordsOrderAndInventory(t *testing.T) {
	db := seededDB()
	effect := &recordingEffect{}
	r := NewReconciler(db, passVerifier("checkout.session.completed", completedSession("cs_1", 3)), "whsec_test", logger.NewLogger())
	r.OnOrderCompleted(effect)

	err := r.Handle(context.Background(), []byte("{}"), "sig")
	assert.NoError(t, err)

	order := db.ordersBySession["cs_1"]
	if assert.NotNil(t, order) {
		assert.Equal(t, models.OrderStatusCompleted, order.Status)
		assert.Equal(t, "buyer@example.com", order.CustomerEmail)
		assert.Equal(t, "Test Buyer", order.CustomerName)
		assert.Equal(t, 3, order.Quantity)
		assert.Equal(t, 50.0, order.AmountPaid)
		assert.Equal(t, "pi_123", order.StripePaymentIntentID)
		assert.Greater(t, order.OrderNumber, int64(1000))
	}
	assert.Equal(t, 3, db.tiers["tier-1"].SoldCount)
	assert.Equal(t, 1, effect.runs)
	if assert.NotNil(t, effect.last.Event) {
		assert.Equal(t, "Warehouse Night", effect.last.Event.Title)
	}
}

func TestSessionCompletedIsIdempotent(t *testing.T) {
	db := seededDB()
	effect := &recordingEffect{}
	r := NewReconciler(db, passVerifier("checkout.session.completed", completedSession("cs_1", 2)), "whsec_test", logger.NewLogger())
	r.OnOrderCompleted(effect)

	assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))
	assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))

	assert.Len(t, db.ordersBySession, 1)
	assert.Equal(t, 2, db.tiers["tier-1"].SoldCount)
	assert.Equal(t, 1, db.incrementCalls)
	assert.Equal(t, 1, effect.runs)
}

func TestSessionCompletedMissingMetadata(t *testing.T) {
	db := seededDB()
	payload := completedSession("cs_1", 1)
	payload["metadata"] = map[string]string{}
	r := NewReconciler(db, passVerifier("checkout.session.completed", payload), "whsec_test", logger.NewLogger())

	err := r.Handle(context.Background(), []byte("{}"), "sig")

	var webhookErr *WebhookError
	assert.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, http.StatusBadRequest, webhookErr.Status)
	assert.Equal(t, "Missing metadata", webhookErr.Message)
	assert.Empty(t, db.ordersBySession)
}

func TestSessionCompletedForcesIncrementWhenSoldOut(t *testing.T) {
	db := seededDB()
	db.tiers["tier-1"].SoldCount = 99 // only 1 left, payment is for 2

	r := NewReconciler(db, passVerifier("checkout.session.completed", completedSession("cs_1", 2)), "whsec_test", logger.NewLogger())
	err := r.Handle(context.Background(), []byte("{}"), "sig")

	assert.NoError(t, err)
	assert.Equal(t, 1, db.forceIncrements)
	assert.Equal(t, 101, db.tiers["tier-1"].SoldCount)
	assert.NotNil(t, db.ordersBySession["cs_1"])
}

func TestEffectFailureDoesNotFailWebhook(t *testing.T) {
	db := seededDB()
	failing := &recordingEffect{fail: true}
	second := &recordingEffect{}
	r := NewReconciler(db, passVerifier("checkout.session.completed", completedSession("cs_1", 1)), "whsec_test", logger.NewLogger())
	r.OnOrderCompleted(failing, second)

	err := r.Handle(context.Background(), []byte("{}"), "sig")

	assert.NoError(t, err)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, second.runs)
}

func refundedCharge(amountRefunded int64, refunded bool) map[string]interface{} {
	return map[string]interface{}{
		"id":              "ch_1",
		"amount_refunded": amountRefunded,
		"refunded":        refunded,
		"payment_intent": map[string]interface{}{
			"id": "pi_123",
		},
	}
}

func TestChargeRefunded(t *testing.T) {
	setup := func() (*memDB, *models.Order) {
		db := seededDB()
		db.tiers["tier-1"].SoldCount = 10
		order := &models.Order{
			ID:                    "order-1",
			OrderNumber:           1001,
			EventID:               "event-1",
			TicketTierID:          "tier-1",
			StripeSessionID:       "cs_1",
			StripePaymentIntentID: "pi_123",
			Quantity:              4,
			AmountPaid:            100,
			Status:                models.OrderStatusCompleted,
		}
		db.ordersBySession["cs_1"] = order
		return db, order
	}

	t.Run("full refund releases all tickets", func(t *testing.T) {
		db, order := setup()
		effect := &recordingEffect{}
		r := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(10000, true)), "whsec_test", logger.NewLogger())
		r.OnOrderRefunded(effect)

		assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))
		assert.Equal(t, models.OrderStatusRefunded, order.Status)
		assert.Equal(t, 100.0, order.RefundedAmount)
		assert.Equal(t, 6, db.tiers["tier-1"].SoldCount)
		assert.Equal(t, 4, effect.last.TicketsReturned)
	})

	t.Run("partial refund releases floored share", func(t *testing.T) {
		db, order := setup()
		r := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(5000, false)), "whsec_test", logger.NewLogger())

		assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))
		assert.Equal(t, models.OrderStatusPartiallyRefunded, order.Status)
		assert.Equal(t, 50.0, order.RefundedAmount)
		assert.Equal(t, 8, db.tiers["tier-1"].SoldCount)
	})

	t.Run("second partial refund only releases the difference", func(t *testing.T) {
		db, order := setup()
		r := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(5000, false)), "whsec_test", logger.NewLogger())
		assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))
		assert.Equal(t, 8, db.tiers["tier-1"].SoldCount)

		r2 := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(10000, true)), "whsec_test", logger.NewLogger())
		assert.NoError(t, r2.Handle(context.Background(), []byte("{}"), "sig"))
		assert.Equal(t, models.OrderStatusRefunded, order.Status)
		assert.Equal(t, 6, db.tiers["tier-1"].SoldCount)
	})

	t.Run("full refund with stale refunded flag", func(t *testing.T) {
		// Stripe can deliver the charge with amount_refunded covering the
		// whole payment while the refunded flag is still false. The amounts
		// decide the status.
		db, order := setup()
		r := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(12000, false)), "whsec_test", logger.NewLogger())

		assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))
		assert.Equal(t, models.OrderStatusRefunded, order.Status)
		assert.Equal(t, 120.0, order.RefundedAmount)
		assert.Equal(t, 6, db.tiers["tier-1"].SoldCount)
	})

	t.Run("tiny refund releases nothing", func(t *testing.T) {
		db, order := setup()
		r := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(500, false)), "whsec_test", logger.NewLogger())

		assert.NoError(t, r.Handle(context.Background(), []byte("{}"), "sig"))
		assert.Equal(t, models.OrderStatusPartiallyRefunded, order.Status)
		assert.Equal(t, 10, db.tiers["tier-1"].SoldCount)
	})

	t.Run("unknown payment intent", func(t *testing.T) {
		db := seededDB()
		r := NewReconciler(db, passVerifier("charge.refunded", refundedCharge(5000, false)), "whsec_test", logger.NewLogger())

		err := r.Handle(context.Background(), []byte("{}"), "sig")
		var webhookErr *WebhookError
		assert.ErrorAs(t, err, &webhookErr)
		assert.Equal(t, http.StatusNotFound, webhookErr.Status)
		assert.Equal(t, "Order not found", webhookErr.Message)
	})
}
