package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
	"verbs-tickets/internal/payments"
	"verbs-tickets/internal/store"
)

// APIError is a checkout failure that maps to a specific HTTP status and a
// user-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func badRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

func notFound(msg string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: msg}
}

// DBLayer is the read surface the checkout flow needs. Checkout never writes:
// inventory only moves when the payment webhook lands.
type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetTier(ctx context.Context, id string) (*models.TicketTier, error)
	GetTierForEvent(ctx context.Context, tierID, eventID string) (*models.TicketTier, error)
}

// SessionCreator creates hosted payment sessions.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, p payments.CheckoutSessionParams) (string, error)
}

type Service struct {
	db      DBLayer
	stripe  SessionCreator
	siteURL string
	logger  *logger.Logger
}

func NewService(db DBLayer, stripe SessionCreator, siteURL string, log *logger.Logger) *Service {
	return &Service{
		db:      db,
		stripe:  stripe,
		siteURL: siteURL,
		logger:  log,
	}
}

// Request is the body of a checkout call. Quantity defaults to 1 when
// omitted.
type Request struct {
	EventID       string `json:"event_id"`
	TicketTierID  string `json:"ticket_tier_id"`
	Quantity      int    `json:"quantity"`
	CustomerEmail string `json:"customer_email"`
}

// Checkout validates an online purchase request and creates the payment
// session. It returns the redirect URL. Validation order is fixed: quantity,
// tier existence, active flag, sales channel, stock, price configuration.
func (s *Service) Checkout(ctx context.Context, req Request) (string, error) {
	if req.EventID == "" || req.TicketTierID == "" {
		return "", badRequest("Missing event_id or ticket_tier_id")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if res := ValidateQuantity(req.Quantity); !res.Valid {
		return "", badRequest(res.Error)
	}

	tier, err := s.db.GetTier(ctx, req.TicketTierID)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFound("Ticket tier not found")
	}
	if err != nil {
		return "", err
	}

	for _, res := range []ValidationResult{
		ValidateTierActive(tier),
		ValidateTierType(tier),
		ValidateStock(tier, req.Quantity),
		ValidateStripeConfig(tier),
	} {
		if !res.Valid {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Rejected checkout for tier %s: %s", tier.ID, res.Error))
			return "", badRequest(res.Error)
		}
	}

	url, err := s.stripe.CreateCheckoutSession(ctx, payments.CheckoutSessionParams{
		PriceID:       tier.StripePriceID,
		EventID:       req.EventID,
		TierID:        tier.ID,
		Quantity:      req.Quantity,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}", s.siteURL),
		CancelURL:     fmt.Sprintf("%s/events/%s", s.siteURL, req.EventID),
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("CHECKOUT", fmt.Sprintf("Checkout started: event %s tier %s x%d", req.EventID, tier.ID, req.Quantity))
	return url, nil
}

// DoorRequest is the body of a door-sale checkout call. The door page sends
// the tier as tier_id, unlike the online checkout body.
type DoorRequest struct {
	EventID       string `json:"event_id"`
	TierID        string `json:"tier_id"`
	Quantity      int    `json:"quantity"`
	CustomerEmail string `json:"customer_email"`
}

// DoorCheckout validates a door-sale purchase. The event must exist, be
// published and have door mode enabled; the tier is looked up scoped to the
// event.
func (s *Service) DoorCheckout(ctx context.Context, req DoorRequest) (string, error) {
	if req.EventID == "" || req.TierID == "" {
		return "", badRequest("Missing event_id or tier_id")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if res := ValidateQuantity(req.Quantity); !res.Valid {
		return "", badRequest(res.Error)
	}

	event, err := s.db.GetEvent(ctx, req.EventID)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFound("Event not found")
	}
	if err != nil {
		return "", err
	}
	if res := ValidateDoorMode(event); !res.Valid {
		return "", badRequest(res.Error)
	}
	if res := ValidateEventPublished(event); !res.Valid {
		return "", badRequest(res.Error)
	}

	tier, err := s.db.GetTierForEvent(ctx, req.TierID, req.EventID)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFound("Ticket tier not found")
	}
	if err != nil {
		return "", err
	}

	for _, res := range []ValidationResult{
		ValidateTierActive(tier),
		ValidateDoorStock(tier, req.Quantity),
		ValidateDoorStripeConfig(tier),
	} {
		if !res.Valid {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Rejected door checkout for tier %s: %s", tier.ID, res.Error))
			return "", badRequest(res.Error)
		}
	}

	url, err := s.stripe.CreateCheckoutSession(ctx, payments.CheckoutSessionParams{
		PriceID:       tier.StripePriceID,
		EventID:       req.EventID,
		TierID:        tier.ID,
		Quantity:      req.Quantity,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}", s.siteURL),
		CancelURL:     fmt.Sprintf("%s/door/%s", s.siteURL, req.EventID),
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("CHECKOUT", fmt.Sprintf("Door checkout started: event %s tier %s x%d", req.EventID, tier.ID, req.Quantity))
	return url, nil
}
