package router

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoEvents is the concrete Events collaborator: a Mongo collection
// named "events", one document per secondary route record, bulk-inserted
// from the buffer CreateSecondaryRouteEvents builds.
type MongoEvents struct {
	collection *mongo.Collection
}

func NewMongoEvents(db *mongo.Database) *MongoEvents {
	return &MongoEvents{collection: db.Collection("events")}
}

func (e *MongoEvents) CreateSecondaryRouteEvents(ctx context.Context, transactionID string, requestTimestamp time.Time, channel *Channel, routes []SecondaryRouteRecord, attempt int) ([]Event, error) {
	channelName := ""
	if channel != nil {
		channelName = channel.Name
	}

	events := make([]Event, len(routes))
	for i, r := range routes {
		events[i] = Event{
			TransactionID:    transactionID,
			RequestTimestamp: requestTimestamp,
			ChannelName:      channelName,
			Attempt:          attempt,
			Route:            r,
		}
	}
	return events, nil
}

func (e *MongoEvents) SaveEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, ev := range events {
		docs[i] = ev
	}

	_, err := e.collection.InsertMany(ctx, docs)
	return err
}
