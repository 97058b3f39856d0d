package management

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pkgerrors "github.com/openhie/txrouter/pkg/errors"
)

type Repository interface {
	CreateChannel(ctx context.Context, channel *Channel) error
	ListChannels(ctx context.Context) ([]Channel, error)
	GetChannel(ctx context.Context, id string) (*Channel, error)
	UpdateChannel(ctx context.Context, channel *Channel) error
	DeleteChannel(ctx context.Context, id string) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{collection: db.Collection("channels")}
}

func (r *mongoRepository) CreateChannel(ctx context.Context, channel *Channel) error {
	if channel.ID == "" {
		channel.ID = uuid.New().String()
	}
	now := time.Now()
	channel.CreatedAt = now
	channel.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, channel)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("channel with name '%s' already exists", channel.Name))
		}
		return fmt.Errorf("failed to create channel: %w", err)
	}

	return nil
}

func (r *mongoRepository) GetChannel(ctx context.Context, id string) (*Channel, error) {
	var channel Channel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&channel)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

func (r *mongoRepository) ListChannels(ctx context.Context) ([]Channel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer cursor.Close(ctx)

	var channels []Channel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels: %w", err)
	}

	return channels, nil
}

func (r *mongoRepository) UpdateChannel(ctx context.Context, channel *Channel) error {
	channel.UpdatedAt = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": channel.ID}, bson.M{"$set": channel})
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("channel not found")
	}

	return nil
}

func (r *mongoRepository) DeleteChannel(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("channel not found")
	}

	return nil
}

// EnsureIndexes creates the indexes the channel admin API relies on.
// Safe to call repeatedly; Mongo is a no-op on an existing index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("channels").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
