package checkout

import (
	"fmt"

	"verbs-tickets/internal/models"
)

// ValidationResult is the outcome of one precondition check. Error carries
// the user-facing message surfaced verbatim by the API.
type ValidationResult struct {
	Valid bool
	Error string
}

func ok() ValidationResult {
	return ValidationResult{Valid: true}
}

func fail(msg string) ValidationResult {
	return ValidationResult{Valid: false, Error: msg}
}

// ValidateQuantity bounds an order to 1..10 tickets.
func ValidateQuantity(quantity int) ValidationResult {
	if quantity < 1 || quantity > 10 {
		return fail("Quantity must be between 1 and 10")
	}
	return ok()
}

func ValidateTierActive(tier *models.TicketTier) ValidationResult {
	if !tier.IsActive {
		return fail("This ticket tier is not available")
	}
	return ok()
}

// ValidateTierType rejects door-only tiers on the online checkout path.
func ValidateTierType(tier *models.TicketTier) ValidationResult {
	if tier.TierType == models.TierTypeDoor {
		return fail("This ticket is only available at the door")
	}
	return ok()
}

// ValidateStock checks remaining stock against the requested quantity.
// Unlimited stock (nil max_stock) always passes regardless of sold count.
func ValidateStock(tier *models.TicketTier, quantity int) ValidationResult {
	if tier.MaxStock == nil {
		return ok()
	}
	available := *tier.MaxStock - tier.SoldCount
	if available < quantity {
		if available <= 0 {
			return fail("This ticket tier is sold out")
		}
		return fail(fmt.Sprintf("Only %d tickets remaining", available))
	}
	return ok()
}

// ValidateDoorStock is the door-path variant; only the sold-out wording
// differs.
func ValidateDoorStock(tier *models.TicketTier, quantity int) ValidationResult {
	if tier.MaxStock == nil {
		return ok()
	}
	available := *tier.MaxStock - tier.SoldCount
	if available < quantity {
		if available <= 0 {
			return fail("Tickets are sold out")
		}
		return fail(fmt.Sprintf("Only %d tickets remaining", available))
	}
	return ok()
}

func ValidateStripeConfig(tier *models.TicketTier) ValidationResult {
	if tier.StripePriceID == "" {
		return fail("Ticket not configured for online purchase")
	}
	return ok()
}

func ValidateDoorStripeConfig(tier *models.TicketTier) ValidationResult {
	if tier.StripePriceID == "" {
		return fail("Ticket not configured for purchase")
	}
	return ok()
}

// ValidateDoorMode requires the event to be flagged for door sales.
func ValidateDoorMode(event *models.Event) ValidationResult {
	if !event.DoorOnlyMode {
		return fail("Door checkout not enabled for this event")
	}
	return ok()
}

func ValidateEventPublished(event *models.Event) ValidationResult {
	if event.Status != models.EventStatusPublished {
		return fail("Event is not available")
	}
	return ok()
}
