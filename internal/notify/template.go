package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"verbs-tickets/internal/models"
)

const orderConfirmationTmpl = `<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; background: #0a0a0a; color: #fafafa; padding: 32px;">
    <div style="max-width: 480px; margin: 0 auto;">
      <h1 style="font-size: 20px; letter-spacing: 2px;">VERBS</h1>
      <p>You're in. Order <strong>#{{.OrderNumber}}</strong> is confirmed.</p>
      <div style="border: 1px solid #333; padding: 16px; margin: 24px 0;">
        <p style="margin: 0 0 8px; font-size: 18px;"><strong>{{.EventTitle}}</strong></p>
        {{if .EventDate}}<p style="margin: 0 0 4px; color: #aaa;">{{.EventDate}}</p>{{end}}
        {{if .Venue}}<p style="margin: 0 0 4px; color: #aaa;">{{.Venue}}</p>{{end}}
        <p style="margin: 12px 0 0;">{{.Quantity}}x {{.TierName}} &mdash; {{.AmountPaid}}</p>
      </div>
      <p>Show the attached QR code at the door.</p>
      <p style="color: #666; font-size: 12px;">Questions? Reply to this email.</p>
    </div>
  </body>
</html>`

const refundNoticeTmpl = `<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; background: #0a0a0a; color: #fafafa; padding: 32px;">
    <div style="max-width: 480px; margin: 0 auto;">
      <h1 style="font-size: 20px; letter-spacing: 2px;">VERBS</h1>
      <p>Your refund for order <strong>#{{.OrderNumber}}</strong> has been processed.</p>
      <div style="border: 1px solid #333; padding: 16px; margin: 24px 0;">
        <p style="margin: 0 0 8px; font-size: 18px;"><strong>{{.EventTitle}}</strong></p>
        <p style="margin: 12px 0 0;">Refunded: {{.RefundedAmount}}</p>
      </div>
      <p style="color: #666; font-size: 12px;">Refunds usually land within 5-10 business days.</p>
    </div>
  </body>
</html>`

var (
	orderConfirmation = template.Must(template.New("order-confirmation").Parse(orderConfirmationTmpl))
	refundNotice      = template.Must(template.New("refund-notice").Parse(refundNoticeTmpl))
)

type confirmationData struct {
	OrderNumber int64
	EventTitle  string
	EventDate   string
	Venue       string
	TierName    string
	Quantity    int
	AmountPaid  string
}

type refundData struct {
	OrderNumber    int64
	EventTitle     string
	RefundedAmount string
}

func formatEventDate(event *models.Event) string {
	if event == nil || event.Date.IsZero() {
		return ""
	}
	loc, err := time.LoadLocation(event.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return event.Date.In(loc).Format("Monday, January 2 @ 3:04 PM")
}

func renderOrderConfirmation(order *models.Order, event *models.Event, tier *models.TicketTier) (string, error) {
	data := confirmationData{
		OrderNumber: order.OrderNumber,
		EventTitle:  "Your event",
		TierName:    "Ticket",
		Quantity:    order.Quantity,
		AmountPaid:  fmt.Sprintf("$%.2f", order.AmountPaid),
	}
	if event != nil {
		data.EventTitle = event.Title
		data.EventDate = formatEventDate(event)
		if event.VenueName != "" {
			data.Venue = event.VenueName
			if event.VenueCity != "" {
				data.Venue += ", " + event.VenueCity
			}
		}
	}
	if tier != nil {
		data.TierName = tier.Name
	}

	var buf bytes.Buffer
	if err := orderConfirmation.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderRefundNotice(order *models.Order, event *models.Event) (string, error) {
	data := refundData{
		OrderNumber:    order.OrderNumber,
		EventTitle:     "Your event",
		RefundedAmount: fmt.Sprintf("$%.2f", order.RefundedAmount),
	}
	if event != nil {
		data.EventTitle = event.Title
	}

	var buf bytes.Buffer
	if err := refundNotice.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
