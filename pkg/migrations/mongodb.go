package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureBillIndexes creates the bills collection indexes. The unique
// (subscriber, period) index is what keeps one bill per subscriber and month.
func EnsureBillIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subscriber", Value: 1}, {Key: "period", Value: 1}},
			Options: options.Index().SetName("idx_bills_subscriber_period").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "calls.call_id", Value: 1}},
			Options: options.Index().SetName("idx_bills_call_id"),
		},
	}

	if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create bill indexes: %w", err)
	}

	return nil
}
