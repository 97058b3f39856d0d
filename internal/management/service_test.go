package management

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openhie/txrouter/pkg/errors"
)

type fakeRepository struct {
	mu       sync.Mutex
	channels map[string]Channel
	nextID   int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{channels: make(map[string]Channel)}
}

func (f *fakeRepository) CreateChannel(ctx context.Context, channel *Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.channels {
		if c.Name == channel.Name {
			return pkgerrors.ErrConflict.WithDetail("name", channel.Name)
		}
	}
	f.nextID++
	channel.ID = fmt.Sprintf("id-%d", f.nextID)
	f.channels[channel.ID] = *channel
	return nil
}

func (f *fakeRepository) ListChannels(ctx context.Context) ([]Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Channel, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepository) GetChannel(ctx context.Context, id string) (*Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.channels[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeRepository) UpdateChannel(ctx context.Context, channel *Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channel.ID]; !ok {
		return fmt.Errorf("channel not found")
	}
	f.channels[channel.ID] = *channel
	return nil
}

func (f *fakeRepository) DeleteChannel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return fmt.Errorf("channel not found")
	}
	delete(f.channels, id)
	return nil
}

type fakeVersioningRepository struct {
	mu        sync.Mutex
	versions  []ChannelVersion
	auditLogs []AuditLog
}

func (f *fakeVersioningRepository) CreateVersion(ctx context.Context, version *ChannelVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, *version)
	return nil
}

func (f *fakeVersioningRepository) GetVersions(ctx context.Context, channelID string) ([]ChannelVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ChannelVersion
	for _, v := range f.versions {
		if v.ChannelID == channelID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVersioningRepository) GetNextVersion(ctx context.Context, channelID string) (int, error) {
	versions, _ := f.GetVersions(ctx, channelID)
	return len(versions) + 1, nil
}

func (f *fakeVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLogs = append(f.auditLogs, *log)
	return nil
}

func (f *fakeVersioningRepository) GetAuditLogs(ctx context.Context, channelID *string, limit int) ([]AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auditLogs, nil
}

func newTestChannelRequest() CreateChannelRequest {
	return CreateChannelRequest{
		Name:       "fhir",
		URLPattern: "^/fhir",
		Routes:     []RouteConfig{{Name: "primary", Type: "http", Host: "localhost", Port: 8080, Primary: true}},
	}
}

func TestService_CreateChannel(t *testing.T) {
	svc := NewService(newFakeRepository())
	channel, err := svc.CreateChannel(context.Background(), newTestChannelRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, channel.ID)
	assert.Equal(t, "fhir", channel.Name)
}

func TestService_CreateChannel_DuplicateName(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, err := svc.CreateChannel(context.Background(), newTestChannelRequest())
	require.NoError(t, err)

	_, err = svc.CreateChannel(context.Background(), newTestChannelRequest())
	assert.Error(t, err)
}

func TestService_CreateChannel_ValidationError(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, err := svc.CreateChannel(context.Background(), CreateChannelRequest{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestService_GetChannel_NotFound(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, err := svc.GetChannel(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestService_UpdateChannel_AppliesFields(t *testing.T) {
	svc := NewService(newFakeRepository())
	created, err := svc.CreateChannel(context.Background(), newTestChannelRequest())
	require.NoError(t, err)

	newName := "fhir-v2"
	updated, err := svc.UpdateChannel(context.Background(), created.ID, UpdateChannelRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "fhir-v2", updated.Name)
}

func TestService_DeleteChannel(t *testing.T) {
	svc := NewService(newFakeRepository())
	created, err := svc.CreateChannel(context.Background(), newTestChannelRequest())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChannel(context.Background(), created.ID))

	_, err = svc.GetChannel(context.Background(), created.ID)
	assert.Error(t, err)
}

func TestService_VersioningDisabledByDefault(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, err := svc.GetChannelVersions(context.Background(), "any")
	assert.Error(t, err)
}

func TestService_VersioningRecordsOnWrite(t *testing.T) {
	versioningRepo := &fakeVersioningRepository{}
	svc := NewService(newFakeRepository(), WithVersioning(versioningRepo))

	created, err := svc.CreateChannel(context.Background(), newTestChannelRequest())
	require.NoError(t, err)

	versions, err := svc.GetChannelVersions(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)

	newName := "fhir-v2"
	_, err = svc.UpdateChannel(context.Background(), created.ID, UpdateChannelRequest{Name: &newName})
	require.NoError(t, err)

	versions, err = svc.GetChannelVersions(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}
