package channelstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhie/txrouter/internal/logger"
	"github.com/openhie/txrouter/internal/management"
)

type fakeRepo struct {
	channels []management.Channel
}

func (f *fakeRepo) CreateChannel(ctx context.Context, channel *management.Channel) error { return nil }
func (f *fakeRepo) ListChannels(ctx context.Context) ([]management.Channel, error)        { return f.channels, nil }
func (f *fakeRepo) GetChannel(ctx context.Context, id string) (*management.Channel, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateChannel(ctx context.Context, channel *management.Channel) error { return nil }
func (f *fakeRepo) DeleteChannel(ctx context.Context, id string) error                   { return nil }

func TestStore_MatchesByURLPattern(t *testing.T) {
	repo := &fakeRepo{channels: []management.Channel{
		{ID: "1", Name: "fhir", URLPattern: "^/fhir", Routes: []management.RouteConfig{{Name: "p", Type: "http", Host: "h", Primary: true}}},
	}}
	store := NewStore(repo, time.Second, logger.NopLogger())
	require.NoError(t, store.Load(context.Background()))

	channel, ok := store.Match("GET", "/fhir/Patient/1")
	require.True(t, ok)
	assert.Equal(t, "fhir", channel.Name)

	_, ok = store.Match("GET", "/other")
	assert.False(t, ok)
}

func TestStore_MethodAllowList(t *testing.T) {
	repo := &fakeRepo{channels: []management.Channel{
		{ID: "1", Name: "fhir", URLPattern: "^/fhir", Methods: []string{"GET"}, Routes: []management.RouteConfig{{Name: "p", Type: "http", Host: "h", Primary: true}}},
	}}
	store := NewStore(repo, time.Second, logger.NopLogger())
	require.NoError(t, store.Load(context.Background()))

	_, ok := store.Match("POST", "/fhir/Patient")
	assert.False(t, ok)

	_, ok = store.Match("GET", "/fhir/Patient")
	assert.True(t, ok)
}

func TestStore_SkipsInvalidPattern(t *testing.T) {
	repo := &fakeRepo{channels: []management.Channel{
		{ID: "1", Name: "broken", URLPattern: "[", Routes: []management.RouteConfig{{Name: "p", Type: "http", Host: "h", Primary: true}}},
		{ID: "2", Name: "ok", URLPattern: "^/ok", Routes: []management.RouteConfig{{Name: "p", Type: "http", Host: "h", Primary: true}}},
	}}
	store := NewStore(repo, time.Second, logger.NopLogger())
	require.NoError(t, store.Load(context.Background()))

	_, ok := store.Match("GET", "/ok")
	assert.True(t, ok)
}

func TestStore_ReloadChannelsSatisfiesConfigReloader(t *testing.T) {
	repo := &fakeRepo{}
	store := NewStore(repo, time.Second, logger.NopLogger())
	assert.NoError(t, store.ReloadChannels(context.Background()))
}

func TestStore_RouteTimeoutDefaults(t *testing.T) {
	repo := &fakeRepo{channels: []management.Channel{
		{ID: "1", Name: "fhir", URLPattern: "^/fhir", Routes: []management.RouteConfig{{Name: "p", Type: "http", Host: "h", Primary: true}}},
	}}
	store := NewStore(repo, 5*time.Second, logger.NopLogger())
	require.NoError(t, store.Load(context.Background()))

	channel, ok := store.Match("GET", "/fhir")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, channel.Routes[0].Timeout)
}
