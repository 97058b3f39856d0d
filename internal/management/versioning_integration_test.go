//go:build integration

package management

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMongoVersioningRepository_VersionsAndAuditLogs(t *testing.T) {
	db := setupManagementDatabase(t)
	repo := NewVersioningRepository(db)

	ctx := context.Background()
	channelID := "channel-1"

	next, err := repo.GetNextVersion(ctx, channelID)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	require.NoError(t, repo.CreateVersion(ctx, &ChannelVersion{ChannelID: channelID, Data: "{}", Version: next, ChangedBy: "tester"}))

	versions, err := repo.GetVersions(ctx, channelID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, 1, versions[0].Version)

	next, err = repo.GetNextVersion(ctx, channelID)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	require.NoError(t, repo.CreateAuditLog(ctx, &AuditLog{ChannelID: &channelID, Action: "update", ChangedBy: "tester"}))

	logs, err := repo.GetAuditLogs(ctx, &channelID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "update", logs[0].Action)
}
