package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *ChannelVersion) error
	GetVersions(ctx context.Context, channelID string) ([]ChannelVersion, error)
	GetNextVersion(ctx context.Context, channelID string) (int, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, channelID *string, limit int) ([]AuditLog, error)
}

type mongoVersioningRepository struct {
	versions *mongo.Collection
	audits   *mongo.Collection
}

func NewVersioningRepository(db *mongo.Database) VersioningRepository {
	return &mongoVersioningRepository{
		versions: db.Collection("channel_versions"),
		audits:   db.Collection("channel_audit_logs"),
	}
}

func (r *mongoVersioningRepository) CreateVersion(ctx context.Context, version *ChannelVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}

	_, err := r.versions.InsertOne(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to create channel version: %w", err)
	}
	return nil
}

func (r *mongoVersioningRepository) GetVersions(ctx context.Context, channelID string) ([]ChannelVersion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: -1}})

	cursor, err := r.versions.Find(ctx, bson.M{"channel_id": channelID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel versions: %w", err)
	}
	defer cursor.Close(ctx)

	var versions []ChannelVersion
	if err := cursor.All(ctx, &versions); err != nil {
		return nil, fmt.Errorf("failed to decode channel versions: %w", err)
	}
	return versions, nil
}

func (r *mongoVersioningRepository) GetNextVersion(ctx context.Context, channelID string) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var latest ChannelVersion
	err := r.versions.FindOne(ctx, bson.M{"channel_id": channelID}, opts).Decode(&latest)
	if err == mongo.ErrNoDocuments {
		return 1, nil
	}
	if err != nil {
		return 1, nil
	}
	return latest.Version + 1, nil
}

func (r *mongoVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	_, err := r.audits.InsertOne(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *mongoVersioningRepository) GetAuditLogs(ctx context.Context, channelID *string, limit int) ([]AuditLog, error) {
	filter := bson.M{}
	if channelID != nil {
		filter["channel_id"] = *channelID
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))

	cursor, err := r.audits.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []AuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}
	return logs, nil
}

func channelToJSON(channel *Channel) (string, error) {
	data, err := json.Marshal(channel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func channelToMap(channel *Channel) (map[string]interface{}, error) {
	data, err := json.Marshal(channel)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
