package syncfeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
)

func TestServicePublishesCommits(t *testing.T) {
	feed, _ := setupTestFeed(t, 100)
	ctx := context.Background()
	svc := core.NewInMemoryService(core.WithChangeFeed(feed))

	_, err := svc.UpdateConfig(ctx, core.ConfigPatch{
		RFIDTagCompanyPrefix:                  domain.Ptr("0614141"),
		RFIDTagIndividualAssetReferencePrefix: domain.Ptr("8"),
	})
	require.NoError(t, err)
	saved, err := svc.Save(ctx, domain.Collection{Name: "Tools", CollectionReferenceNumber: domain.Ptr("1")})
	require.NoError(t, err)
	_, err = svc.Delete(ctx, domain.EntityCollection, saved.Metadata().ID)
	require.NoError(t, err)

	changes, err := feed.Read(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	require.Equal(t, domain.EntityConfig, changes[0].Document.Type)
	require.Equal(t, "0001", changes[1].Document.Data["collection_reference_number"])
	require.False(t, changes[1].Document.Deleted)
	require.True(t, changes[2].Document.Deleted)
	require.Equal(t, saved.Metadata().ID, changes[2].Document.ID)
}
