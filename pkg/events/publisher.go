// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/models"
)

const TypeOrderCreated = "order.created"

// OrderCreated is the payload written for every placed order.
type OrderCreated struct {
	EventID       string               `json:"event_id"`
	Type          string               `json:"type"`
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	Total         decimal.Decimal      `json:"total_order_price"`
	Currency      string               `json:"currency"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	IsPaid        bool                 `json:"is_paid"`
	ItemCount     int                  `json:"item_count"`
	CreatedAt     time.Time            `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(cfg global.KafkaConfig) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

func newPublisherWithWriter(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// SendOrderConfirmation publishes an order.created event keyed by order id.
func (p *Publisher) SendOrderConfirmation(ctx context.Context, order *models.Order, _ *models.User) error {
	event := OrderCreated{
		EventID:       uuid.NewString(),
		Type:          TypeOrderCreated,
		OrderID:       order.ID.Hex(),
		UserID:        order.UserID.Hex(),
		Total:         order.Total,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		IsPaid:        order.IsPaid,
		ItemCount:     order.GetItemCount(),
		CreatedAt:     order.CreatedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeOrderCreated)},
		},
	}); err != nil {
		return errors.Wrap(err, "publish order event")
	}
	log.WithFields(log.Fields{"order_id": event.OrderID, "event_id": event.EventID}).Debug("Order event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
