// Package kafkanotify publishes payment-confirmed events to Kafka.
package kafkanotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Notifier struct {
	writer *kafka.Writer
}

func New(brokers []string, topic string) *Notifier {
	return &Notifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

type paymentConfirmedEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	OrderNumber string    `json:"order_number"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// OnPaymentConfirmed emits one event per first-applied confirmation,
// keyed by order number so all events of one order land on one partition.
// Consumers deduplicate on event_id.
func (n *Notifier) OnPaymentConfirmed(ctx context.Context, orderNumber string) error {
	payload, err := json.Marshal(paymentConfirmedEvent{
		EventID:     uuid.NewString(),
		Type:        "order.payment.confirmed",
		OrderNumber: orderNumber,
		ConfirmedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderNumber),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}
