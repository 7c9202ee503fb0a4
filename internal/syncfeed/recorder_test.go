package syncfeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"inventorycore/pkg/domain"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	for _, id := range []string{"a", "b", "c"} {
		c := domain.Collection{Name: id}
		c.ID = id
		require.NoError(t, rec.Publish(ctx, c))
	}

	all, err := rec.Read(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Document.ID)

	page, err := rec.Read(ctx, all[0].StreamID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "b", page[0].Document.ID)

	tail, err := rec.Read(ctx, "9", 10)
	require.NoError(t, err)
	require.Empty(t, tail)

	_, err = rec.Read(ctx, "x", 1)
	require.Error(t, err)
}
