package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/store"
)

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return global.WithTimeout(ctx, s.timeout)
}

func findOne[T any](ctx context.Context, s *Store, collection string, filter bson.D) (*T, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var doc T
	if err := s.collection(collection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, classify(err, "find in "+collection)
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, s *Store, collection string, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	cursor, err := s.collection(collection).Find(ctx, filter, opts...)
	if err != nil {
		return nil, classify(err, "find in "+collection)
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, classify(err, "decode "+collection)
	}
	return items, nil
}

// findPage returns one page of documents and the total number matching filter.
func findPage[T any](ctx context.Context, s *Store, collection string, filter bson.D, sort bson.D, page, limit int64) ([]T, int64, error) {
	opts := options.Find().
		SetSort(sort).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	items, err := findAll[T](ctx, s, collection, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	total, err := s.collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, classify(err, "count "+collection)
	}
	return items, total, nil
}

func insertOne(ctx context.Context, s *Store, collection string, doc any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err := s.collection(collection).InsertOne(ctx, doc)
	return classify(err, "insert into "+collection)
}

// replaceByID overwrites the whole document; upsert creates it when missing.
func replaceByID(ctx context.Context, s *Store, collection string, id bson.ObjectID, doc any, upsert bool) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	opts := options.Replace()
	if upsert {
		opts.SetUpsert(true)
	}
	res, err := s.collection(collection).ReplaceOne(ctx, byID(id), doc, opts)
	if err != nil {
		return classify(err, "replace in "+collection)
	}
	if !upsert && res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func byID(id bson.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}
