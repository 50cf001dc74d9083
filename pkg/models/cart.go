package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CartItem carries price snapshots taken when the line was last touched.
type CartItem struct {
	ID                bson.ObjectID   `json:"id" bson:"_id"`
	ProductID         bson.ObjectID   `json:"product_id" bson:"product_id"`
	Quantity          int             `json:"quantity" bson:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price" bson:"unit_price"`
	InstallationPrice decimal.Decimal `json:"installation_price" bson:"installation_price"`
}

// Cart is one user's mutable basket. TotalPrice covers products only;
// installation and shipping depend on the zone and are priced at checkout.
type Cart struct {
	ID         bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID     bson.ObjectID   `json:"user_id" bson:"user_id"`
	Items      []CartItem      `json:"items" bson:"items"`
	TotalItems int             `json:"total_items" bson:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price" bson:"total_price"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" bson:"updated_at"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func NewCart(userID bson.ObjectID, now time.Time) *Cart {
	return &Cart{
		ID:         bson.NewObjectID(),
		UserID:     userID,
		Items:      []CartItem{},
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewCartItem(p *Product, quantity int) CartItem {
	return CartItem{
		ID:                bson.NewObjectID(),
		ProductID:         p.ID,
		Quantity:          quantity,
		UnitPrice:         p.Price,
		InstallationPrice: p.InstallationPrice,
	}
}

func (ci *CartItem) LineTotal() decimal.Decimal {
	return ci.UnitPrice.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

func (ci *CartItem) InstallationTotal() decimal.Decimal {
	return ci.InstallationPrice.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// RefreshPrices copies the current catalog prices onto the line.
func (ci *CartItem) RefreshPrices(p *Product) bool {
	changed := !ci.UnitPrice.Equal(p.Price) || !ci.InstallationPrice.Equal(p.InstallationPrice)
	ci.UnitPrice = p.Price
	ci.InstallationPrice = p.InstallationPrice
	return changed
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) IndexOfItem(itemID bson.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) IndexOfProduct(productID bson.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Recalculate recomputes TotalItems and TotalPrice from the lines.
func (c *Cart) Recalculate(now time.Time) {
	totalItems := 0
	totalPrice := decimal.Zero
	for i := range c.Items {
		totalItems += c.Items[i].Quantity
		totalPrice = totalPrice.Add(c.Items[i].LineTotal())
	}
	c.TotalItems = totalItems
	c.TotalPrice = totalPrice.Round(2)
	c.UpdatedAt = now
}

// Reset empties the cart in place; the document and its id survive.
func (c *Cart) Reset(now time.Time) {
	c.Items = []CartItem{}
	c.Recalculate(now)
}
