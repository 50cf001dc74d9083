package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// NormalizePaymentMethod maps gateway and legacy names onto the two persisted methods.
func NormalizePaymentMethod(method string) PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cash", "cod", "cash_on_delivery":
		return PaymentCash
	default:
		return PaymentCard
	}
}

type DeliveryStatus string

const (
	StatusNew       DeliveryStatus = "new"
	StatusPreparing DeliveryStatus = "preparing"
	StatusInTransit DeliveryStatus = "in_transit"
	StatusDelivered DeliveryStatus = "delivered"
)

func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch DeliveryStatus(s) {
	case StatusNew, StatusPreparing, StatusInTransit, StatusDelivered:
		return DeliveryStatus(s), true
	}
	return "", false
}

// ShippingAddress is where an order ships; CityZoneID selects the shipping zone.
type ShippingAddress struct {
	Details    string        `json:"details" bson:"details" binding:"required"`
	Phone      string        `json:"phone" bson:"phone" binding:"required"`
	CityZoneID bson.ObjectID `json:"city_zone_id" bson:"city_zone_id"`
	PostalCode string        `json:"postal_code,omitempty" bson:"postal_code,omitempty"`
}

// OrderTotals is the frozen price breakdown of an order.
type OrderTotals struct {
	SubTotal     decimal.Decimal `json:"sub_total_price" bson:"sub_total_price"`
	Installation decimal.Decimal `json:"total_installation_price" bson:"total_installation_price"`
	Shipping     decimal.Decimal `json:"shipping_price" bson:"shipping_price"`
	Total        decimal.Decimal `json:"total_order_price" bson:"total_order_price"`
}

type Order struct {
	ID              bson.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID          bson.ObjectID `json:"user_id" bson:"user_id"`
	CartID          bson.ObjectID `json:"cart_id" bson:"cart_id"`
	CartItems       []CartItem    `json:"cart_items" bson:"cart_items"`
	OrderTotals     `bson:",inline"`
	Currency        string          `json:"currency" bson:"currency"`
	ShippingAddress ShippingAddress `json:"shipping_address" bson:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" bson:"payment_method"`
	IsPaid          bool            `json:"is_paid" bson:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	IsDelivered     bool            `json:"is_delivered" bson:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	DeliveryStatus  DeliveryStatus  `json:"delivery_status" bson:"delivery_status"`
	IsCanceled      bool            `json:"is_canceled" bson:"is_canceled"`
	CanceledAt      *time.Time      `json:"canceled_at,omitempty" bson:"canceled_at,omitempty"`
	TransactionRef  string          `json:"transaction_ref,omitempty" bson:"transaction_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" bson:"updated_at"`
}

// NewOrder snapshots the cart lines and freezes totals onto a fresh order.
func NewOrder(cart *Cart, totals OrderTotals, address ShippingAddress, method PaymentMethod, currency string, now time.Time) *Order {
	items := make([]CartItem, len(cart.Items))
	copy(items, cart.Items)
	return &Order{
		ID:              bson.NewObjectID(),
		UserID:          cart.UserID,
		CartID:          cart.ID,
		CartItems:       items,
		OrderTotals:     totals,
		Currency:        currency,
		ShippingAddress: address,
		PaymentMethod:   method,
		DeliveryStatus:  StatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MarkPaid records payment capture.
func (o *Order) MarkPaid(now time.Time) error {
	if o.IsCanceled {
		return ErrOrderCanceled
	}
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &now
	o.UpdatedAt = now
	return nil
}

func (o *Order) SetDeliveryStatus(status string, now time.Time) error {
	next, ok := ParseDeliveryStatus(status)
	if !ok {
		return ErrInvalidStatus.WithMessage("status %q is not one of new, preparing, in_transit, delivered", status)
	}
	if o.IsCanceled {
		return ErrOrderCanceled
	}
	if o.IsDelivered {
		return ErrAlreadyDelivered
	}
	o.DeliveryStatus = next
	if next == StatusDelivered {
		o.IsDelivered = true
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now
	return nil
}

// Cancel is only available to the owner, before payment and delivery.
func (o *Order) Cancel(userID bson.ObjectID, now time.Time) error {
	if o.UserID != userID {
		return ErrNotOwner
	}
	if o.IsPaid {
		return ErrCannotCancelPaid
	}
	if o.IsDelivered {
		return ErrCannotCancelDelivered
	}
	if o.IsCanceled {
		return ErrAlreadyCanceled
	}
	o.IsCanceled = true
	o.CanceledAt = &now
	o.UpdatedAt = now
	return nil
}

// GetItemCount returns the total number of units in the order
func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.CartItems {
		count += item.Quantity
	}
	return count
}

// StatsStatus is the grouping key used by order statistics.
func (o *Order) StatsStatus() string {
	if o.IsCanceled {
		return "canceled"
	}
	return string(o.DeliveryStatus)
}

// ValueSegmentBounds are the lower bounds of the order value segments.
var ValueSegmentBounds = []int64{0, 100, 500, 1000, 5000}

// SegmentFor returns the label of the value segment total falls into.
func SegmentFor(total decimal.Decimal) string {
	for i := len(ValueSegmentBounds) - 1; i >= 0; i-- {
		if total.GreaterThanOrEqual(decimal.NewFromInt(ValueSegmentBounds[i])) {
			return SegmentLabel(i)
		}
	}
	return SegmentLabel(0)
}

func SegmentLabel(i int) string {
	if i == len(ValueSegmentBounds)-1 {
		return fmt.Sprintf("%d+", ValueSegmentBounds[i])
	}
	return fmt.Sprintf("%d-%d", ValueSegmentBounds[i], ValueSegmentBounds[i+1])
}

// StatusSummary is one row of the admin order statistics.
type StatusSummary struct {
	Status     string          `json:"status" bson:"_id"`
	Orders     int64           `json:"orders" bson:"orders"`
	PaidOrders int64           `json:"paid_orders" bson:"paid_orders"`
	Revenue    decimal.Decimal `json:"revenue" bson:"revenue"`
}

// ValueSegment buckets orders by total value.
type ValueSegment struct {
	Segment  string          `json:"segment" bson:"_id"`
	Orders   int64           `json:"orders" bson:"orders"`
	Revenue  decimal.Decimal `json:"revenue" bson:"revenue"`
	AvgOrder decimal.Decimal `json:"avg_order" bson:"avg_order"`
	MinOrder decimal.Decimal `json:"min_order" bson:"min_order"`
	MaxOrder decimal.Decimal `json:"max_order" bson:"max_order"`
}

type OrderStats struct {
	ByStatus    []StatusSummary `json:"by_status"`
	Segments    []ValueSegment  `json:"segments"`
	TotalOrders int64           `json:"total_orders"`
}

type CheckoutRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" binding:"required"`
}
