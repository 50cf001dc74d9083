package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

func (s *Store) FindZone(ctx context.Context, id bson.ObjectID) (*models.ShippingZone, error) {
	return findOne[models.ShippingZone](ctx, s, colZones, byID(id))
}

func (s *Store) FindZoneByKey(ctx context.Context, key string) (*models.ShippingZone, error) {
	return findOne[models.ShippingZone](ctx, s, colZones, bson.D{{Key: "key", Value: key}})
}

func (s *Store) ListZones(ctx context.Context) ([]models.ShippingZone, error) {
	return findAll[models.ShippingZone](ctx, s, colZones, bson.D{}, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
}

func (s *Store) CreateZone(ctx context.Context, zone *models.ShippingZone) error {
	return insertOne(ctx, s, colZones, zone)
}

func (s *Store) UpdateZone(ctx context.Context, zone *models.ShippingZone) error {
	return replaceByID(ctx, s, colZones, zone.ID, zone, false)
}

func (s *Store) DeleteZone(ctx context.Context, id bson.ObjectID) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	res, err := s.collection(colZones).DeleteOne(ctx, byID(id))
	if err != nil {
		return classify(err, "delete shipping zone")
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
