package router

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// transactionDocument is the Mongo document shape for the transactions
// collection: one per transactionId, with routes appended to as
// secondary attempts settle and status/completedTimestamp set once the
// dispatch finishes.
type transactionDocument struct {
	TransactionID       string                 `bson:"_id"`
	ChannelName         string                 `bson:"channel_name"`
	RequestTimestamp    time.Time              `bson:"request_timestamp"`
	Status              int                    `bson:"status,omitempty"`
	CompletedTimestamp  time.Time              `bson:"completed_timestamp,omitempty"`
	Orchestrations      []OrchestrationRecord  `bson:"orchestrations,omitempty"`
	Routes              []SecondaryRouteRecord `bson:"routes,omitempty"`
}

// MongoPersistence is the concrete Persistence collaborator: a Mongo
// collection named "transactions", upserted into as a dispatch
// progresses and finalized once it settles.
type MongoPersistence struct {
	collection *mongo.Collection
}

func NewMongoPersistence(db *mongo.Database) *MongoPersistence {
	return &MongoPersistence{collection: db.Collection("transactions")}
}

func (p *MongoPersistence) StoreNonPrimaryResponse(ctx context.Context, transactionID string, record SecondaryRouteRecord) error {
	_, err := p.collection.UpdateOne(ctx,
		bson.M{"_id": transactionID},
		bson.M{
			"$push": bson.M{"routes": record},
			"$setOnInsert": bson.M{
				"_id": transactionID,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (p *MongoPersistence) SetFinalStatus(ctx context.Context, rc *RequestContext) error {
	status := 0
	if rc.Response != nil {
		status = rc.Response.Status
	}

	_, err := p.collection.UpdateOne(ctx,
		bson.M{"_id": rc.TransactionID},
		bson.M{
			"$set": bson.M{
				"channel_name":        rc.channelName(),
				"request_timestamp":   rc.RequestTimestamp,
				"status":              status,
				"completed_timestamp": time.Now(),
				"orchestrations":      rc.Orchestrations,
			},
			"$setOnInsert": bson.M{
				"_id": rc.TransactionID,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (rc *RequestContext) channelName() string {
	if rc.AuthorisedChannel == nil {
		return ""
	}
	return rc.AuthorisedChannel.Name
}
