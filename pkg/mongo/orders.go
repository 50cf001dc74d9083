package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return insertOne(ctx, s, colOrders, order)
}

func (s *Store) FindOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	return findOne[models.Order](ctx, s, colOrders, byID(id))
}

func (s *Store) FindOrderByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	return findOne[models.Order](ctx, s, colOrders, bson.D{{Key: "transaction_ref", Value: ref}})
}

func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	return replaceByID(ctx, s, colOrders, order.ID, order, false)
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	filter.Normalize()
	return findPage[models.Order](ctx, s, colOrders, orderQuery(filter),
		bson.D{{Key: "created_at", Value: -1}}, filter.Page, filter.Limit)
}

func orderQuery(f store.OrderFilter) bson.D {
	q := bson.D{}
	if f.UserID != nil {
		q = append(q, bson.E{Key: "user_id", Value: *f.UserID})
	}
	if f.IsPaid != nil {
		q = append(q, bson.E{Key: "is_paid", Value: *f.IsPaid})
	}
	if f.IsDelivered != nil {
		q = append(q, bson.E{Key: "is_delivered", Value: *f.IsDelivered})
	}
	if f.IsCanceled != nil {
		q = append(q, bson.E{Key: "is_canceled", Value: *f.IsCanceled})
	}
	return q
}
