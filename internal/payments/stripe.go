package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"

	"verbs-tickets/internal/logger"
)

// Init sets the global Stripe API key. Call once at startup before any
// payment operation.
func Init(secretKey string) {
	stripe.Key = secretKey
}

// Client wraps the Stripe API calls the ticketing service makes. All amounts
// cross the Stripe boundary in cents; the rest of the service works in
// dollars.
type Client struct {
	logger *logger.Logger
}

func NewClient(log *logger.Logger) *Client {
	return &Client{logger: log}
}

// CheckoutSessionParams describes one hosted checkout session. EventID,
// TierID and Quantity travel as session metadata so the webhook reconciler
// can correlate the payment back to inventory.
type CheckoutSessionParams struct {
	PriceID       string
	EventID       string
	TierID        string
	Quantity      int
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CreateCheckoutSession creates a hosted payment session and returns its
// redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(int64(p.Quantity)),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata("event_id", p.EventID)
	params.AddMetadata("ticket_tier_id", p.TierID)
	params.AddMetadata("quantity", strconv.Itoa(p.Quantity))

	sess, err := session.New(params)
	if err != nil {
		c.logger.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for tier %s: %v", p.TierID, err))
		return "", err
	}

	c.logger.Info("STRIPE", fmt.Sprintf("Created checkout session %s for tier %s x%d", sess.ID, p.TierID, p.Quantity))
	return sess.URL, nil
}

// VerifyWebhookSignature validates a webhook payload against its signature
// header. API version mismatches are tolerated so a library upgrade does not
// start dropping events.
func (c *Client) VerifyWebhookSignature(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CreateProductAndPrice registers a ticket tier in the Stripe catalog and
// returns the new product and price ids. priceDollars is converted to cents.
func (c *Client) CreateProductAndPrice(ctx context.Context, eventID, tierID, name string, priceDollars float64) (string, string, error) {
	productParams := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	productParams.Context = ctx
	productParams.AddMetadata("event_id", eventID)
	productParams.AddMetadata("ticket_tier_id", tierID)

	prod, err := product.New(productParams)
	if err != nil {
		return "", "", err
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(int64(priceDollars * 100)),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
	}
	priceParams.Context = ctx

	pr, err := price.New(priceParams)
	if err != nil {
		return "", "", err
	}

	c.logger.Info("STRIPE", fmt.Sprintf("Created product %s / price %s for tier %s", prod.ID, pr.ID, tierID))
	return prod.ID, pr.ID, nil
}

// RotatePrice creates a fresh price on an existing product and deactivates
// the previous one. Stripe prices are immutable, so price changes are always
// a create-and-archive pair.
func (c *Client) RotatePrice(ctx context.Context, productID, oldPriceID string, priceDollars float64) (string, error) {
	priceParams := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(int64(priceDollars * 100)),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
	}
	priceParams.Context = ctx

	pr, err := price.New(priceParams)
	if err != nil {
		return "", err
	}

	if oldPriceID != "" {
		updateParams := &stripe.PriceParams{Active: stripe.Bool(false)}
		updateParams.Context = ctx
		if _, err := price.Update(oldPriceID, updateParams); err != nil {
			c.logger.Warn("STRIPE", fmt.Sprintf("Failed to deactivate old price %s: %v", oldPriceID, err))
		}
	}

	c.logger.Info("STRIPE", fmt.Sprintf("Rotated price on product %s: %s -> %s", productID, oldPriceID, pr.ID))
	return pr.ID, nil
}

// UpdateProductName renames a catalog product. Unlike prices, product names
// are mutable, so this is a plain update.
func (c *Client) UpdateProductName(ctx context.Context, productID, name string) error {
	params := &stripe.ProductParams{Name: stripe.String(name)}
	params.Context = ctx
	_, err := product.Update(productID, params)
	if err != nil {
		return err
	}
	c.logger.Info("STRIPE", fmt.Sprintf("Renamed product %s to %q", productID, name))
	return nil
}

// ArchiveProduct deactivates a product so it can no longer be sold.
func (c *Client) ArchiveProduct(ctx context.Context, productID string) error {
	params := &stripe.ProductParams{Active: stripe.Bool(false)}
	params.Context = ctx
	_, err := product.Update(productID, params)
	return err
}

// ArchiveProductsForEvent deactivates every catalog product created for an
// event, using the event id stamped in product metadata.
func (c *Client) ArchiveProductsForEvent(ctx context.Context, eventID string) error {
	searchParams := &stripe.ProductSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['event_id']:'%s' AND active:'true'", eventID),
			Context: ctx,
		},
	}

	iter := product.Search(searchParams)
	for iter.Next() {
		prod := iter.Product()
		if err := c.ArchiveProduct(ctx, prod.ID); err != nil {
			c.logger.Warn("STRIPE", fmt.Sprintf("Failed to archive product %s: %v", prod.ID, err))
		}
	}
	return iter.Err()
}

// CreateRefund refunds a payment intent. amountDollars of zero refunds the
// full remaining amount. The refund outcome flows back through the
// charge.refunded webhook; nothing is written locally here.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string, amountDollars float64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if amountDollars > 0 {
		params.Amount = stripe.Int64(int64(amountDollars * 100))
	}

	ref, err := refund.New(params)
	if err != nil {
		return "", err
	}

	c.logger.Info("STRIPE", fmt.Sprintf("Created refund %s for payment intent %s", ref.ID, paymentIntentID))
	return ref.ID, nil
}
