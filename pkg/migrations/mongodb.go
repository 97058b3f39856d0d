package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureTransactionIndexes creates the supporting indexes for the
// transactions and events collections the dispatch engine writes to.
// Safe to call repeatedly; Mongo is a no-op on an existing index.
func EnsureTransactionIndexes(ctx context.Context, db *mongo.Database) error {
	transactions := db.Collection("transactions")
	transactionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "channel_name", Value: 1}, {Key: "completed_timestamp", Value: -1}},
			Options: options.Index().SetName("idx_transactions_channel_completed"),
		},
		{
			Keys:    bson.D{{Key: "request_timestamp", Value: -1}},
			Options: options.Index().SetName("idx_transactions_request_timestamp"),
		},
	}
	if _, err := transactions.Indexes().CreateMany(ctx, transactionIndexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create transaction indexes: %w", err)
		}
	}

	events := db.Collection("events")
	eventIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transactionid", Value: 1}},
			Options: options.Index().SetName("idx_events_transaction_id"),
		},
		{
			Keys:    bson.D{{Key: "channelname", Value: 1}, {Key: "requesttimestamp", Value: -1}},
			Options: options.Index().SetName("idx_events_channel_request_timestamp"),
		},
	}
	if _, err := events.Indexes().CreateMany(ctx, eventIndexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create event indexes: %w", err)
		}
	}

	return nil
}
