package mongo

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

var requiredIndexes = []IndexConfig{
	// Users
	{
		CollectionName: colUsers,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_user_email_unique"),
		},
	},

	// Products
	{
		CollectionName: colProducts,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_slug_unique"),
		},
	},
	{
		CollectionName: colProducts,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_sku_unique"),
		},
	},

	// Carts: one per user
	{
		CollectionName: colCarts,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_cart_user_unique"),
		},
	},

	// Orders
	{
		CollectionName: colOrders,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_user_orders"),
		},
	},
	// Card orders only; cash orders carry no transaction_ref.
	{
		CollectionName: colOrders,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{{Key: "transaction_ref", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("idx_transaction_ref_unique").
				SetPartialFilterExpression(bson.D{{Key: "transaction_ref", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	},
	{
		CollectionName: colOrders,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "is_paid", Value: 1},
				{Key: "is_delivered", Value: 1},
				{Key: "is_canceled", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_order_admin_filters"),
		},
	},

	// Shipping zones
	{
		CollectionName: colZones,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_zone_key_unique"),
		},
	},

	// Inventory movements
	{
		CollectionName: colInventory,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_product_history"),
		},
	},
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	log.Info("Starting index creation...")

	for _, idxConfig := range requiredIndexes {
		if err := s.createIndex(ctx, idxConfig); err != nil {
			return err
		}
	}

	log.Info("All indexes created successfully")
	return nil
}

func (s *Store) createIndex(ctx context.Context, idxConfig IndexConfig) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	indexName, err := s.collection(idxConfig.CollectionName).Indexes().CreateOne(ctx, idxConfig.IndexModel)
	if err != nil {
		log.WithError(err).WithField("collection", idxConfig.CollectionName).Error("Error creating index")
		return classify(err, "create index on "+idxConfig.CollectionName)
	}

	log.WithFields(log.Fields{"index": indexName, "collection": idxConfig.CollectionName}).Info("Created index")
	return nil
}
