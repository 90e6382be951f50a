package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	qrcode "github.com/skip2/go-qrcode"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
)

// Mailer sends transactional order email through Resend. The QR code
// attached to confirmations encodes the order id and is scanned at the door.
type Mailer struct {
	client *resend.Client
	from   string
	logger *logger.Logger
}

func NewMailer(apiKey, from string, log *logger.Logger) *Mailer {
	return &Mailer{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: log,
	}
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order, event *models.Event, tier *models.TicketTier) error {
	html, err := renderOrderConfirmation(order, event, tier)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}

	qr, err := qrcode.Encode(fmt.Sprintf("verbs:order:%s", order.ID), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	subject := fmt.Sprintf("Your tickets - order #%d", order.OrderNumber)
	_, err = m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{order.CustomerEmail},
		Subject: subject,
		Html:    html,
		Attachments: []*resend.Attachment{
			{
				Filename: "ticket.png",
				Content:  qr,
			},
		},
	})
	if err != nil {
		return err
	}

	m.logger.Info("MAILER", fmt.Sprintf("Confirmation sent to %s for order #%d", order.CustomerEmail, order.OrderNumber))
	return nil
}

func (m *Mailer) SendRefundNotice(ctx context.Context, order *models.Order, event *models.Event) error {
	html, err := renderRefundNotice(order, event)
	if err != nil {
		return fmt.Errorf("render refund notice: %w", err)
	}

	_, err = m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{order.CustomerEmail},
		Subject: fmt.Sprintf("Refund processed - order #%d", order.OrderNumber),
		Html:    html,
	})
	if err != nil {
		return err
	}

	m.logger.Info("MAILER", fmt.Sprintf("Refund notice sent to %s for order #%d", order.CustomerEmail, order.OrderNumber))
	return nil
}

// AudienceSync adds purchasers to the Resend marketing audience.
type AudienceSync struct {
	client     *resend.Client
	audienceID string
	logger     *logger.Logger
}

func NewAudienceSync(apiKey, audienceID string, log *logger.Logger) *AudienceSync {
	return &AudienceSync{
		client:     resend.NewClient(apiKey),
		audienceID: audienceID,
		logger:     log,
	}
}

func (a *AudienceSync) AddContact(ctx context.Context, email, name string) error {
	if email == "" {
		return nil
	}

	first, last := splitName(name)
	_, err := a.client.Contacts.CreateWithContext(ctx, &resend.CreateContactRequest{
		Email:      email,
		FirstName:  first,
		LastName:   last,
		AudienceId: a.audienceID,
	})
	if err != nil {
		return err
	}

	a.logger.Info("MAILER", fmt.Sprintf("Added %s to audience", email))
	return nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
