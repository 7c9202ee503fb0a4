package syncfeed

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventorycore/internal/settings"
	"inventorycore/pkg/domain"
)

func setupTestFeed(t *testing.T, maxLen int64) (*RedisFeed, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	feed := NewRedisFeed(client, "", maxLen)
	t.Cleanup(func() { _ = feed.Close() })
	return feed, mr
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	feed, err := Open(context.Background(), settings.Feed{RedisAddr: mr.Addr(), Stream: "changes"})
	require.NoError(t, err)
	defer feed.Close()
	assert.Equal(t, "changes", feed.Stream())
}

func TestOpenDisabled(t *testing.T) {
	_, err := Open(context.Background(), settings.Feed{})
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestOpenConnectionError(t *testing.T) {
	_, err := Open(context.Background(), settings.Feed{RedisAddr: "localhost:99999"})
	assert.Error(t, err)
}

func TestPublishAndRead(t *testing.T) {
	feed, mr := setupTestFeed(t, 0)
	ctx := context.Background()

	coll := domain.Collection{Name: "Tools"}
	coll.Meta = domain.Meta{ID: "c1", Rev: "1-aa"}
	item := domain.Item{Name: "Drill", CollectionID: domain.Ptr("c1")}
	item.Meta = domain.Meta{ID: "i1", Rev: "2-bb", Deleted: true}

	require.NoError(t, feed.Publish(ctx, coll))
	require.NoError(t, feed.Publish(ctx, item))

	entries, err := mr.Stream(DefaultStream)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"type", "item", "id", "i1", "rev", "2-bb", "deleted", "1"}, entries[1].Values[:8])

	changes, err := feed.Read(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.EntityCollection, changes[0].Document.Type)
	assert.Equal(t, "Tools", changes[0].Document.Data["name"])
	assert.Equal(t, "c1", changes[1].Document.Data["collection"])
	assert.True(t, changes[1].Document.Deleted)

	after, err := feed.Read(ctx, changes[0].StreamID, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "i1", after[0].Document.ID)
}

func TestPublishTrimsStream(t *testing.T) {
	feed, mr := setupTestFeed(t, 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		c := domain.Collection{Name: id}
		c.ID = id
		require.NoError(t, feed.Publish(ctx, c))
	}
	entries, err := mr.Stream(DefaultStream)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 4)
	assert.GreaterOrEqual(t, len(entries), 2)
}

func TestPublishConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	feed := NewRedisFeed(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "", 0)
	defer feed.Close()
	mr.Close()
	c := domain.Collection{Name: "Tools"}
	c.ID = "c1"
	assert.Error(t, feed.Publish(context.Background(), c))
}

func TestReadMalformedEntry(t *testing.T) {
	feed, mr := setupTestFeed(t, 0)
	_, err := mr.XAdd(DefaultStream, "*", []string{"type", "item"})
	require.NoError(t, err)
	_, err = feed.Read(context.Background(), "", 10)
	assert.Error(t, err)
}
