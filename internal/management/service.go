package management

import (
	"context"
	"strings"

	"github.com/openhie/txrouter/internal/constants"
	pkgerrors "github.com/openhie/txrouter/pkg/errors"
	"github.com/openhie/txrouter/pkg/models"
)

type service struct {
	repo                Repository
	versioningRepo      VersioningRepository
	configEventProducer *ConfigEventProducer
	auditEnabled        bool
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
		s.auditEnabled = true
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{repo: repo}

	for _, opt := range opts {
		opt(s)
	}

	if s.versioningRepo != nil {
		s.auditEnabled = true
	}

	return s
}

func (s *service) CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error) {
	if err := ValidateCreateChannel(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	channel := &Channel{
		Name:       req.Name,
		URLPattern: req.URLPattern,
		Methods:    req.Methods,
		TimeoutMs:  req.TimeoutMs,
		Routes:     req.Routes,
	}

	if err := s.repo.CreateChannel(ctx, channel); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.createVersionAndAudit(ctx, channel, "create", nil)
	s.publishConfigEvent(ctx, models.ActionCreate, channel.ID)

	return channel, nil
}

func (s *service) ListChannels(ctx context.Context) ([]Channel, error) {
	channels, err := s.repo.ListChannels(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return channels, nil
}

func (s *service) GetChannel(ctx context.Context, id string) (*Channel, error) {
	channel, err := s.repo.GetChannel(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if channel == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return channel, nil
}

func (s *service) UpdateChannel(ctx context.Context, id string, req UpdateChannelRequest) (*Channel, error) {
	if err := ValidateUpdateChannel(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	channel, err := s.repo.GetChannel(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if channel == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := channelToMap(channel)
	applyChannelUpdate(channel, req)

	if err := s.repo.UpdateChannel(ctx, channel); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.createVersionAndAudit(ctx, channel, "update", oldValue)
	s.publishConfigEvent(ctx, models.ActionUpdate, channel.ID)

	return channel, nil
}

func (s *service) DeleteChannel(ctx context.Context, id string) error {
	channel, err := s.repo.GetChannel(ctx, id)
	if err != nil {
		return s.handleNotFoundError(err, id)
	}
	if channel == nil {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := channelToMap(channel)

	if err := s.repo.DeleteChannel(ctx, id); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.auditEnabled && s.versioningRepo != nil {
		auditLog := s.buildAuditLog(id, "delete", oldValue, nil, getChangedBy(ctx))
		_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
	}

	s.publishConfigEvent(ctx, models.ActionDelete, id)
	return nil
}

func (s *service) GetChannelVersions(ctx context.Context, channelID string) ([]ChannelVersion, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	versions, err := s.versioningRepo.GetVersions(ctx, channelID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return versions, nil
}

func (s *service) GetAuditLogs(ctx context.Context, channelID *string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, channelID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) handleNotFoundError(err error, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "not found") {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func (s *service) createVersionAndAudit(ctx context.Context, channel *Channel, action string, oldValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	channelJSON, err := channelToJSON(channel)
	if err != nil {
		return
	}

	version := s.buildVersion(ctx, channel, channelJSON)
	if err := s.versioningRepo.CreateVersion(ctx, version); err != nil {
		return
	}

	newValue, err := channelToMap(channel)
	if err != nil {
		return
	}

	auditLog := s.buildAuditLog(channel.ID, action, oldValue, newValue, getChangedBy(ctx))
	_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
}

func (s *service) buildVersion(ctx context.Context, channel *Channel, channelJSON string) *ChannelVersion {
	version := 1
	if s.versioningRepo != nil {
		if nextVersion, err := s.versioningRepo.GetNextVersion(ctx, channel.ID); err == nil {
			version = nextVersion
		}
	}

	return &ChannelVersion{
		ChannelID: channel.ID,
		Data:      channelJSON,
		Version:   version,
		ChangedBy: getChangedBy(ctx),
	}
}

func (s *service) buildAuditLog(channelID, action string, oldValue, newValue map[string]interface{}, changedBy string) *AuditLog {
	return &AuditLog{
		ChannelID: &channelID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: changedBy,
	}
}

func (s *service) publishConfigEvent(ctx context.Context, action, channelID string) {
	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishChannelEvent(ctx, action, channelID, getChangedBy(ctx))
	}
}

func applyChannelUpdate(channel *Channel, req UpdateChannelRequest) {
	if req.Name != nil {
		channel.Name = *req.Name
	}
	if req.URLPattern != nil {
		channel.URLPattern = *req.URLPattern
	}
	if req.Methods != nil {
		channel.Methods = *req.Methods
	}
	if req.TimeoutMs != nil {
		channel.TimeoutMs = *req.TimeoutMs
	}
	if req.Routes != nil {
		channel.Routes = *req.Routes
	}
}

func getChangedBy(ctx context.Context) string {
	if userID := ctx.Value("user_id"); userID != nil {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return "system"
}
