package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testOrder() *models.Order {
	cart := models.NewCart(bson.NewObjectID(), time.Now())
	cart.Items = []models.CartItem{{ID: bson.NewObjectID(), ProductID: bson.NewObjectID(), Quantity: 3, UnitPrice: decimal.NewFromInt(10)}}
	totals := models.OrderTotals{SubTotal: decimal.NewFromInt(30), Installation: decimal.Zero, Shipping: decimal.NewFromInt(5), Total: decimal.NewFromInt(35)}
	return models.NewOrder(cart, totals, models.ShippingAddress{}, models.PaymentCard, "SAR", time.Now())
}

func TestPublisher_WritesOrderCreated(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisherWithWriter(w)
	order := testOrder()

	require.NoError(t, p.SendOrderConfirmation(context.Background(), order, nil))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, order.ID.Hex(), string(msg.Key))
	var event OrderCreated
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, TypeOrderCreated, event.Type)
	assert.Equal(t, order.UserID.Hex(), event.UserID)
	assert.Equal(t, 3, event.ItemCount)
	assert.True(t, event.Total.Equal(decimal.NewFromInt(35)))
	assert.NotEmpty(t, event.EventID)
}

func TestPublisher_WriteFailure(t *testing.T) {
	p := newPublisherWithWriter(&fakeWriter{err: errors.New("leader not available")})

	err := p.SendOrderConfirmation(context.Background(), testOrder(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newPublisherWithWriter(w).Close())
	assert.True(t, w.closed)
}
