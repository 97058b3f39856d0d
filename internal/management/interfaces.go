package management

import (
	"context"
)

// Service is the channel admin API's business-logic surface: CRUD over
// channels plus the version/audit trail those mutations produce.
type Service interface {
	CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	GetChannel(ctx context.Context, id string) (*Channel, error)
	UpdateChannel(ctx context.Context, id string, req UpdateChannelRequest) (*Channel, error)
	DeleteChannel(ctx context.Context, id string) error

	GetChannelVersions(ctx context.Context, channelID string) ([]ChannelVersion, error)
	GetAuditLogs(ctx context.Context, channelID *string, limit int) ([]AuditLog, error)
}
