package models_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
)

var now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *models.Order {
	t.Helper()
	cart := models.NewCart(bson.NewObjectID(), now)
	cart.Items = append(cart.Items, models.CartItem{
		ID:                bson.NewObjectID(),
		ProductID:         bson.NewObjectID(),
		Quantity:          2,
		UnitPrice:         decimal.NewFromInt(100),
		InstallationPrice: decimal.NewFromInt(20),
	})
	totals := models.OrderTotals{
		SubTotal:     decimal.NewFromInt(200),
		Installation: decimal.NewFromInt(40),
		Shipping:     decimal.NewFromInt(15),
		Total:        decimal.NewFromInt(255),
	}
	return models.NewOrder(cart, totals, models.ShippingAddress{Details: "King Fahd Rd", Phone: "0500000000"}, models.PaymentCash, "SAR", now)
}

func TestNewOrder_SnapshotsCart(t *testing.T) {
	cart := models.NewCart(bson.NewObjectID(), now)
	cart.Items = append(cart.Items, models.CartItem{ID: bson.NewObjectID(), Quantity: 1, UnitPrice: decimal.NewFromInt(5)})

	order := models.NewOrder(cart, models.OrderTotals{}, models.ShippingAddress{}, models.PaymentCash, "SAR", now)
	cart.Reset(now)

	require.Len(t, order.CartItems, 1)
	assert.Equal(t, cart.ID, order.CartID)
	assert.Equal(t, cart.UserID, order.UserID)
	assert.Equal(t, models.StatusNew, order.DeliveryStatus)
	assert.False(t, order.IsPaid)
	assert.Equal(t, 1, order.GetItemCount())
}

func TestMarkPaid(t *testing.T) {
	order := newTestOrder(t)

	require.NoError(t, order.MarkPaid(now))
	assert.True(t, order.IsPaid)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, now, *order.PaidAt)

	err := order.MarkPaid(now)
	assert.True(t, errors.Is(err, models.ErrAlreadyPaid))
}

func TestSetDeliveryStatus_DeliveredTwice(t *testing.T) {
	order := newTestOrder(t)

	require.NoError(t, order.SetDeliveryStatus("preparing", now))
	assert.Equal(t, models.StatusPreparing, order.DeliveryStatus)
	assert.False(t, order.IsDelivered)

	require.NoError(t, order.SetDeliveryStatus("delivered", now))
	assert.True(t, order.IsDelivered)
	require.NotNil(t, order.DeliveredAt)

	err := order.SetDeliveryStatus("delivered", now)
	assert.True(t, errors.Is(err, models.ErrAlreadyDelivered))
}

func TestSetDeliveryStatus_InvalidStatus(t *testing.T) {
	order := newTestOrder(t)

	err := order.SetDeliveryStatus("teleported", now)

	assert.True(t, errors.Is(err, models.ErrInvalidStatus))
	assert.Equal(t, models.StatusNew, order.DeliveryStatus)
}

func TestCancel_Guards(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		order := newTestOrder(t)
		err := order.Cancel(bson.NewObjectID(), now)
		assert.True(t, errors.Is(err, models.ErrNotOwner))
	})

	t.Run("paid", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.MarkPaid(now))
		err := order.Cancel(order.UserID, now)
		assert.True(t, errors.Is(err, models.ErrCannotCancelPaid))
	})

	t.Run("delivered", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.SetDeliveryStatus("delivered", now))
		err := order.Cancel(order.UserID, now)
		assert.True(t, errors.Is(err, models.ErrCannotCancelDelivered))
	})

	t.Run("twice", func(t *testing.T) {
		order := newTestOrder(t)
		require.NoError(t, order.Cancel(order.UserID, now))
		assert.True(t, order.IsCanceled)
		require.NotNil(t, order.CanceledAt)

		err := order.Cancel(order.UserID, now)
		assert.True(t, errors.Is(err, models.ErrAlreadyCanceled))
	})
}

func TestCanceledOrderIsTerminal(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.Cancel(order.UserID, now))

	assert.True(t, errors.Is(order.MarkPaid(now), models.ErrOrderCanceled))
	assert.True(t, errors.Is(order.SetDeliveryStatus("preparing", now), models.ErrOrderCanceled))
	assert.True(t, errors.Is(order.Cancel(order.UserID, now), models.ErrAlreadyCanceled))
}

func TestTransitionsKeepFrozenPrices(t *testing.T) {
	order := newTestOrder(t)
	before := order.OrderTotals
	items := append([]models.CartItem(nil), order.CartItems...)

	require.NoError(t, order.MarkPaid(now))
	require.NoError(t, order.SetDeliveryStatus("in_transit", now))
	require.NoError(t, order.SetDeliveryStatus("delivered", now))

	assert.Equal(t, before, order.OrderTotals)
	assert.Equal(t, items, order.CartItems)
	assert.True(t, order.Total.Equal(order.SubTotal.Add(order.Installation).Add(order.Shipping)))
}

func TestNormalizePaymentMethod(t *testing.T) {
	assert.Equal(t, models.PaymentCash, models.NormalizePaymentMethod("cash"))
	assert.Equal(t, models.PaymentCash, models.NormalizePaymentMethod(" COD "))
	assert.Equal(t, models.PaymentCard, models.NormalizePaymentMethod("paytabs"))
	assert.Equal(t, models.PaymentCard, models.NormalizePaymentMethod("stripe"))
	assert.Equal(t, models.PaymentCard, models.NormalizePaymentMethod("card"))
}
