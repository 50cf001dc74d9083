package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

func (s *Store) FindUser(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, s, colUsers, byID(id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, s, colUsers, bson.D{{Key: "email", Value: strings.ToLower(strings.TrimSpace(email))}})
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return insertOne(ctx, s, colUsers, user)
}

// SaveShippingAddress remembers the address used for the user's card checkout.
func (s *Store) SaveShippingAddress(ctx context.Context, userID bson.ObjectID, address models.ShippingAddress) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	res, err := s.collection(colUsers).UpdateOne(ctx, byID(userID), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "shipping_address", Value: address},
			{Key: "updated_at", Value: time.Now()},
		}},
	})
	if err != nil {
		return classify(err, "save shipping address")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
