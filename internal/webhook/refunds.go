package webhook

import "verbs-tickets/internal/models"

// TicketsToReturn computes how many tickets a refund releases back into
// stock. Partial refunds release the floored proportional share, so
// refunding less than one ticket's worth of a multi-ticket order releases
// nothing. A full refund always releases the whole order.
func TicketsToReturn(refundedAmount, amountPaid float64, quantity int, fullRefund bool) int {
	if quantity <= 0 {
		return 0
	}
	if fullRefund || (amountPaid > 0 && refundedAmount >= amountPaid) {
		return quantity
	}
	if amountPaid <= 0 || refundedAmount <= 0 {
		return 0
	}
	n := int(float64(quantity) * refundedAmount / amountPaid)
	if n > quantity {
		n = quantity
	}
	return n
}

// RefundStatus maps the cumulative refunded amount to the order lifecycle
// status. The amounts decide, not the charge's refunded flag: Stripe can
// deliver the full-refund charge with the flag still false.
func RefundStatus(refundedAmount, amountPaid float64) string {
	if amountPaid > 0 && refundedAmount >= amountPaid {
		return models.OrderStatusRefunded
	}
	return models.OrderStatusPartiallyRefunded
}
