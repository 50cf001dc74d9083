package models_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
)

func TestCartRecalculate(t *testing.T) {
	cart := models.NewCart(bson.NewObjectID(), now)
	cart.Items = []models.CartItem{
		{ID: bson.NewObjectID(), Quantity: 2, UnitPrice: decimal.RequireFromString("19.99"), InstallationPrice: decimal.NewFromInt(5)},
		{ID: bson.NewObjectID(), Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
	}

	cart.Recalculate(now)

	assert.Equal(t, 5, cart.TotalItems)
	assert.Equal(t, "40.28", cart.TotalPrice.StringFixed(2))
}

func TestCartReset_KeepsIdentity(t *testing.T) {
	cart := models.NewCart(bson.NewObjectID(), now)
	id := cart.ID
	cart.Items = append(cart.Items, models.CartItem{ID: bson.NewObjectID(), Quantity: 1, UnitPrice: decimal.NewFromInt(3)})
	cart.Recalculate(now)

	cart.Reset(now)

	assert.Equal(t, id, cart.ID)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, cart.TotalItems)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestCartIndexing(t *testing.T) {
	cart := models.NewCart(bson.NewObjectID(), now)
	product := &models.Product{ID: bson.NewObjectID(), Price: decimal.NewFromInt(10)}
	item := models.NewCartItem(product, 1)
	cart.Items = append(cart.Items, item)

	assert.Equal(t, 0, cart.IndexOfItem(item.ID))
	assert.Equal(t, 0, cart.IndexOfProduct(product.ID))
	assert.Equal(t, -1, cart.IndexOfItem(bson.NewObjectID()))

	cart.RemoveAt(0)
	assert.True(t, cart.IsEmpty())
}

func TestCartItem_RefreshPrices(t *testing.T) {
	product := &models.Product{ID: bson.NewObjectID(), Price: decimal.NewFromInt(10), InstallationPrice: decimal.NewFromInt(2)}
	item := models.NewCartItem(product, 3)

	assert.False(t, item.RefreshPrices(product))

	product.Price = decimal.NewFromInt(12)
	assert.True(t, item.RefreshPrices(product))
	assert.Equal(t, "36", item.LineTotal().String())
	assert.Equal(t, "6", item.InstallationTotal().String())
}
