package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"storefront.local/checkout-api/pkg/models"
)

func (s *Store) GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	return findOne[models.Product](ctx, s, colProducts, byID(id))
}

func (s *Store) ListProducts(ctx context.Context, page, limit int64) ([]models.Product, int64, error) {
	return findPage[models.Product](ctx, s, colProducts, bson.D{}, bson.D{{Key: "created_at", Value: -1}}, page, limit)
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	return insertOne(ctx, s, colProducts, p)
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	return replaceByID(ctx, s, colProducts, p.ID, p, false)
}

// DecrementStock moves every ordered quantity from stock to sold in one
// BulkWrite and records the matching inventory movements.
func (s *Store) DecrementStock(ctx context.Context, order *models.Order) error {
	if len(order.CartItems) == 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	now := time.Now()
	updates := make([]mongo.WriteModel, 0, len(order.CartItems))
	for _, item := range order.CartItems {
		updates = append(updates, mongo.NewUpdateOneModel().
			SetFilter(byID(item.ProductID)).
			SetUpdate(bson.D{
				{Key: "$inc", Value: bson.D{
					{Key: "quantity", Value: -item.Quantity},
					{Key: "sold", Value: item.Quantity},
				}},
				{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
			}))
	}
	if _, err := s.collection(colProducts).BulkWrite(ctx, updates); err != nil {
		return classify(err, "decrement stock")
	}

	if _, err := s.collection(colInventory).InsertMany(ctx, models.SaleMovements(order)); err != nil {
		return classify(err, "record inventory movements")
	}
	return nil
}
