package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
)

// Producer streams order lifecycle events to Kafka. It runs as a post-commit
// effect: delivery is best effort and failures never affect order state.
type Producer struct {
	completedWriter *kafka.Writer
	refundedWriter  *kafka.Writer
	logger          *logger.Logger
}

func NewProducer(brokers []string, completedTopic, refundedTopic string, log *logger.Logger) *Producer {
	return &Producer{
		completedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   completedTopic,
		}),
		refundedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   refundedTopic,
		}),
		logger: log,
	}
}

type orderEvent struct {
	OrderID         string  `json:"order_id"`
	OrderNumber     int64   `json:"order_number"`
	EventID         string  `json:"event_id"`
	TicketTierID    string  `json:"ticket_tier_id"`
	Quantity        int     `json:"quantity"`
	AmountPaid      float64 `json:"amount_paid"`
	RefundedAmount  float64 `json:"refunded_amount,omitempty"`
	TicketsReturned int     `json:"tickets_returned,omitempty"`
	Status          string  `json:"status"`
}

func (p *Producer) PublishOrderCompleted(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, p.completedWriter, order, 0)
}

func (p *Producer) PublishOrderRefunded(ctx context.Context, order *models.Order, ticketsReturned int) error {
	return p.publish(ctx, p.refundedWriter, order, ticketsReturned)
}

func (p *Producer) publish(ctx context.Context, writer *kafka.Writer, order *models.Order, ticketsReturned int) error {
	payload, err := json.Marshal(orderEvent{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		EventID:         order.EventID,
		TicketTierID:    order.TicketTierID,
		Quantity:        order.Quantity,
		AmountPaid:      order.AmountPaid,
		RefundedAmount:  order.RefundedAmount,
		TicketsReturned: ticketsReturned,
		Status:          order.Status,
	})
	if err != nil {
		return err
	}

	if err := writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: payload,
	}); err != nil {
		return err
	}

	p.logger.Info("KAFKA", fmt.Sprintf("Published %s event for order #%d", order.Status, order.OrderNumber))
	return nil
}

func (p *Producer) Close() error {
	if err := p.completedWriter.Close(); err != nil {
		return err
	}
	return p.refundedWriter.Close()
}
