// Package store declares the persistence ports used by the checkout services.
// Implementations return ErrNotFound and ErrDuplicate for the two conditions
// callers branch on; every other failure is an upstream error.
package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Catalog is the read side of the product collection.
type Catalog interface {
	GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error)
}

type Products interface {
	Catalog
	ListProducts(ctx context.Context, page, limit int64) ([]models.Product, int64, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
}

// Inventory applies the stock side effects of a placed order in one batch.
type Inventory interface {
	DecrementStock(ctx context.Context, order *models.Order) error
}

type Carts interface {
	FindCartByUser(ctx context.Context, userID bson.ObjectID) (*models.Cart, error)
	FindCart(ctx context.Context, id bson.ObjectID) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
}

type OrderFilter struct {
	UserID      *bson.ObjectID
	IsPaid      *bool
	IsDelivered *bool
	IsCanceled  *bool
	Page        int64
	Limit       int64
}

// Normalize applies the default page and limit.
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
}

func (f OrderFilter) Skip() int64 {
	return (f.Page - 1) * f.Limit
}

type Orders interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error)
	FindOrderByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	OrderStats(ctx context.Context) (*models.OrderStats, error)
}

type Zones interface {
	FindZone(ctx context.Context, id bson.ObjectID) (*models.ShippingZone, error)
	FindZoneByKey(ctx context.Context, key string) (*models.ShippingZone, error)
	ListZones(ctx context.Context) ([]models.ShippingZone, error)
	CreateZone(ctx context.Context, zone *models.ShippingZone) error
	UpdateZone(ctx context.Context, zone *models.ShippingZone) error
	DeleteZone(ctx context.Context, id bson.ObjectID) error
}

type Users interface {
	FindUser(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	SaveShippingAddress(ctx context.Context, userID bson.ObjectID, address models.ShippingAddress) error
}

type Settings interface {
	GetPaymentSetting(ctx context.Context) (*models.PaymentSetting, error)
	SavePaymentSetting(ctx context.Context, setting *models.PaymentSetting) error
}

// Transactor runs fn atomically when the backing store supports it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
