package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
)

// OrderStats summarises orders by delivery status and buckets live orders
// by total value.
func (s *Store) OrderStats(ctx context.Context) (*models.OrderStats, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	collection := s.collection(colOrders)

	byStatus := bson.A{
		bson.D{
			{Key: "$group", Value: bson.D{
				{Key: "_id", Value: bson.D{{Key: "$cond", Value: bson.A{"$is_canceled", "canceled", "$delivery_status"}}}},
				{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "paid_orders", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$is_paid", 1, 0}}}}}},
				{Key: "revenue", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$is_paid", "$total_order_price", 0}}}}}},
			}},
		},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	statusCursor, err := collection.Aggregate(ctx, byStatus)
	if err != nil {
		return nil, classify(err, "aggregate orders by status")
	}
	defer statusCursor.Close(ctx)

	stats := &models.OrderStats{}
	if err := statusCursor.All(ctx, &stats.ByStatus); err != nil {
		return nil, classify(err, "decode order status summary")
	}

	segCursor, err := collection.Aggregate(ctx, segmentPipeline())
	if err != nil {
		return nil, classify(err, "aggregate order value segments")
	}
	defer segCursor.Close(ctx)

	if err := segCursor.All(ctx, &stats.Segments); err != nil {
		return nil, classify(err, "decode order value segments")
	}

	for _, row := range stats.ByStatus {
		stats.TotalOrders += row.Orders
	}
	return stats, nil
}

func segmentPipeline() bson.A {
	bounds := models.ValueSegmentBounds
	boundaries := bson.A{}
	for _, b := range bounds {
		boundaries = append(boundaries, b)
	}
	branches := bson.A{}
	for i := 0; i < len(bounds)-1; i++ {
		branches = append(branches, bson.D{
			{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{"$_id", bounds[i]}}}},
			{Key: "then", Value: models.SegmentLabel(i)},
		})
	}
	overflow := models.SegmentLabel(len(bounds) - 1)

	return bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "is_canceled", Value: false}}}},
		bson.D{
			{Key: "$bucket", Value: bson.D{
				{Key: "groupBy", Value: "$total_order_price"},
				{Key: "boundaries", Value: boundaries},
				{Key: "default", Value: overflow},
				{Key: "output", Value: bson.D{
					{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
					{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total_order_price"}}},
					{Key: "avg_order", Value: bson.D{{Key: "$avg", Value: "$total_order_price"}}},
					{Key: "min_order", Value: bson.D{{Key: "$min", Value: "$total_order_price"}}},
					{Key: "max_order", Value: bson.D{{Key: "$max", Value: "$total_order_price"}}},
				}},
			}},
		},
		bson.D{
			{Key: "$addFields", Value: bson.D{
				{Key: "segment", Value: bson.D{
					{Key: "$switch", Value: bson.D{
						{Key: "branches", Value: branches},
						{Key: "default", Value: overflow},
					}},
				}},
			}},
		},
		bson.D{
			{Key: "$project", Value: bson.D{
				{Key: "_id", Value: "$segment"},
				{Key: "orders", Value: 1},
				{Key: "revenue", Value: 1},
				{Key: "min_order", Value: 1},
				{Key: "max_order", Value: 1},
				{Key: "avg_order", Value: bson.D{{Key: "$round", Value: bson.A{"$avg_order", 2}}}},
			}},
		},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "min_order", Value: 1}}}},
	}
}
