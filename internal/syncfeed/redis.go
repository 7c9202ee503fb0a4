// Package syncfeed publishes committed records to a Redis stream so that
// replicas and other devices can follow changes.
package syncfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inventorycore/internal/infra/persistence/codec"
	"inventorycore/internal/settings"
	"inventorycore/pkg/domain"
)

// DefaultStream is used when no stream name is configured.
const DefaultStream = "inventory:changes"

// ErrDisabled is returned by Open when no Redis address is configured.
var ErrDisabled = errors.New("syncfeed: no redis address configured")

// Change is one entry read back from the stream.
type Change struct {
	StreamID string          `json:"stream_id"`
	Document domain.Document `json:"document"`
}

// RedisFeed appends encoded documents to a Redis stream.
type RedisFeed struct {
	client *redis.Client
	stream string
	maxLen int64
}

// Open connects to the Redis server named by cfg and checks the connection.
func Open(ctx context.Context, cfg settings.Feed) (*RedisFeed, error) {
	if cfg.RedisAddr == "" {
		return nil, ErrDisabled
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return NewRedisFeed(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisFeed wraps an existing client. A maxLen of zero keeps every entry.
func NewRedisFeed(client *redis.Client, stream string, maxLen int64) *RedisFeed {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisFeed{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the stream key.
func (f *RedisFeed) Stream() string { return f.stream }

// Publish appends e to the stream.
func (f *RedisFeed) Publish(ctx context.Context, e domain.Entity) error {
	doc, err := codec.Encode(e)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", doc.Type, doc.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: f.stream,
		Values: []any{
			"type", string(doc.Type),
			"id", doc.ID,
			"rev", doc.Rev,
			"deleted", doc.Deleted,
			"document", string(payload),
		},
	}
	if f.maxLen > 0 {
		args.MaxLen = f.maxLen
		args.Approx = true
	}
	if err := f.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", f.stream, err)
	}
	return nil
}

// Read returns up to count changes recorded after the stream ID after.
// An empty after starts at the beginning of the stream; a count of zero
// reads to the end.
func (f *RedisFeed) Read(ctx context.Context, after string, count int64) ([]Change, error) {
	start := "-"
	if after != "" {
		start = "(" + after
	}
	var cmd *redis.XMessageSliceCmd
	if count > 0 {
		cmd = f.client.XRangeN(ctx, f.stream, start, "+", count)
	} else {
		cmd = f.client.XRange(ctx, f.stream, start, "+")
	}
	msgs, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", f.stream, err)
	}
	changes := make([]Change, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["document"].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s has no document", msg.ID)
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		changes = append(changes, Change{StreamID: msg.ID, Document: doc})
	}
	return changes, nil
}

// Close releases the client.
func (f *RedisFeed) Close() error { return f.client.Close() }
