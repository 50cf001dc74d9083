package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const ChangeTypeSale = "sale"

// InventoryMovement is the audit record written next to every stock decrement.
type InventoryMovement struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID       bson.ObjectID `bson:"product_id" json:"product_id"`
	OrderID         bson.ObjectID `bson:"order_id" json:"order_id"`
	ChangeType      string        `bson:"change_type" json:"change_type"`
	QuantityChanged int           `bson:"quantity_changed" json:"quantity_changed"` // Negative for sales
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
}

// SaleMovements builds one movement per ordered line.
func SaleMovements(order *Order) []InventoryMovement {
	movements := make([]InventoryMovement, 0, len(order.CartItems))
	for _, item := range order.CartItems {
		movements = append(movements, InventoryMovement{
			ID:              bson.NewObjectID(),
			ProductID:       item.ProductID,
			OrderID:         order.ID,
			ChangeType:      ChangeTypeSale,
			QuantityChanged: -item.Quantity,
			CreatedAt:       order.CreatedAt,
		})
	}
	return movements
}
