package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
)

func (s *Store) FindCartByUser(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	return findOne[models.Cart](ctx, s, colCarts, bson.D{{Key: "user_id", Value: userID}})
}

func (s *Store) FindCart(ctx context.Context, id bson.ObjectID) (*models.Cart, error) {
	return findOne[models.Cart](ctx, s, colCarts, byID(id))
}

// SaveCart upserts the whole cart document.
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	return replaceByID(ctx, s, colCarts, cart.ID, cart, true)
}
