package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"verbs-tickets/internal/models"
)

// ErrNotFound is returned when a lookup resolves no row.
var ErrNotFound = errors.New("not found")

// DB is the single source of truth for all persisted state. Application
// components never cache rows across requests; every read goes back here.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- EVENTS ----------------

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEventStatus moves an event through its lifecycle.
func (d *DB) UpdateEventStatus(ctx context.Context, eventID, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

// ---------------- TICKET TIERS ----------------

func (d *DB) GetTier(ctx context.Context, id string) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := d.Bun.NewSelect().
		Model(&tier).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

// GetTierForEvent fetches a tier scoped to its event, for the door checkout
// path where the caller supplies both identifiers.
func (d *DB) GetTierForEvent(ctx context.Context, tierID, eventID string) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := d.Bun.NewSelect().
		Model(&tier).
		Where("id = ?", tierID).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

// InsertTier creates a ticket tier row.
func (d *DB) InsertTier(ctx context.Context, tier *models.TicketTier) error {
	if tier.ID == "" {
		tier.ID = uuid.NewString()
	}
	if tier.CreatedAt.IsZero() {
		tier.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(tier).Exec(ctx)
	return err
}

// UpdateTierPrice stores a new price and the Stripe price id that replaces
// the previous one.
func (d *DB) UpdateTierPrice(ctx context.Context, tierID string, price float64, stripePriceID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("price = ?", price).
		Set("stripe_price_id = ?", stripePriceID).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}

// UpdateTierName renames a ticket tier.
func (d *DB) UpdateTierName(ctx context.Context, tierID, name string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("name = ?", name).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}

// SetTierStripeIDs stamps the catalog ids after product creation.
func (d *DB) SetTierStripeIDs(ctx context.Context, tierID, productID, priceID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("stripe_product_id = ?", productID).
		Set("stripe_price_id = ?", priceID).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}

// IncrementSoldCount applies a single conditional update guarded by
// max_stock. It reports false when the increment would exceed the cap (or
// the tier does not exist); no partial write happens in that case.
func (d *DB) IncrementSoldCount(ctx context.Context, tierID string, qty int) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("sold_count = sold_count + ?", qty).
		Where("id = ?", tierID).
		Where("(max_stock IS NULL OR sold_count + ? <= max_stock)", qty).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ForceIncrementSoldCount records sold tickets past the stock cap. Used when
// a payment already settled for a tier that concurrently sold out: the money
// is authoritative, so the ledger must reflect the sale even if it oversells.
func (d *DB) ForceIncrementSoldCount(ctx context.Context, tierID string, qty int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("sold_count = sold_count + ?", qty).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}

// DecrementSoldCount releases tickets back into stock, floored at zero.
func (d *DB) DecrementSoldCount(ctx context.Context, tierID string, qty int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("sold_count = CASE WHEN sold_count - ? < 0 THEN 0 ELSE sold_count - ? END", qty, qty).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}

// ---------------- ORDERS ----------------

// UpsertOrderBySession inserts an order keyed on its Stripe checkout session
// id. A second delivery of the same session hits the conflict branch and the
// existing row (with its order number) is returned unchanged, which makes
// the completed-payment webhook idempotent. The bool reports whether a new
// row was created: on conflict the returned id is the existing row's, not
// the one generated here.
func (d *DB) UpsertOrderBySession(ctx context.Context, order models.Order) (*models.Order, bool, error) {
	generatedID := uuid.NewString()
	order.ID = generatedID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	// The DO UPDATE assignment is a no-op: it exists only so the conflict
	// branch still returns the existing row. Touching any real column here
	// would let a late duplicate webhook overwrite a refund.
	_, err := d.Bun.NewInsert().
		Model(&order).
		On("CONFLICT (stripe_session_id) DO UPDATE").
		Set("stripe_session_id = EXCLUDED.stripe_session_id").
		Returning("id, order_number, created_at").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	return &order, order.ID == generatedID, nil
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("stripe_payment_intent_id = ?", paymentIntentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SetOrderRefund stores the refund outcome: the new lifecycle status and the
// cumulative refunded amount.
func (d *DB) SetOrderRefund(ctx context.Context, orderID, status string, refundedAmount float64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("refunded_amount = ?", refundedAmount).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- NEWSLETTER ----------------

func (d *DB) GetSubscriberByEmail(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	var sub models.NewsletterSubscriber
	err := d.Bun.NewSelect().
		Model(&sub).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (d *DB) InsertSubscriber(ctx context.Context, sub *models.NewsletterSubscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(sub).Exec(ctx)
	return err
}

// Resubscribe clears the soft-delete stamp and refreshes the subscription
// time for a subscriber who signed up again.
func (d *DB) Resubscribe(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.NewsletterSubscriber)(nil)).
		Set("unsubscribed_at = NULL").
		Set("subscribed_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ---------------- DJS / LINEUP ----------------

func (d *DB) InsertDJ(ctx context.Context, dj *models.DJ) error {
	if dj.ID == "" {
		dj.ID = uuid.NewString()
	}
	if dj.CreatedAt.IsZero() {
		dj.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(dj).Exec(ctx)
	return err
}

func (d *DB) CountEventDJs(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.EventDJ)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

func (d *DB) InsertEventDJ(ctx context.Context, eventDJ *models.EventDJ) error {
	if eventDJ.ID == "" {
		eventDJ.ID = uuid.NewString()
	}
	_, err := d.Bun.NewInsert().Model(eventDJ).Exec(ctx)
	return err
}

// GetEventDJ loads a lineup slot together with its DJ row.
func (d *DB) GetEventDJ(ctx context.Context, id string) (*models.EventDJ, error) {
	var eventDJ models.EventDJ
	err := d.Bun.NewSelect().
		Model(&eventDJ).
		Relation("DJ").
		Where("event_dj.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &eventDJ, nil
}

// IsUniqueViolation reports whether err came from a unique constraint, for
// both the Postgres driver and the sqlite driver used in tests.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
