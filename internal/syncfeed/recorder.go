package syncfeed

import (
	"context"
	"strconv"
	"sync"

	"inventorycore/internal/infra/persistence/codec"
	"inventorycore/pkg/domain"
)

// Recorder keeps published changes in memory. It serves single-process
// deployments without Redis and tests.
type Recorder struct {
	mu      sync.Mutex
	changes []Change
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Publish appends e.
func (r *Recorder) Publish(_ context.Context, e domain.Entity) error {
	doc, err := codec.Encode(e)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, Change{StreamID: strconv.Itoa(len(r.changes) + 1), Document: doc})
	return nil
}

// Read returns up to count changes after the given ID, matching RedisFeed.
func (r *Recorder) Read(_ context.Context, after string, count int64) ([]Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := 0
	if after != "" {
		n, err := strconv.Atoi(after)
		if err != nil {
			return nil, err
		}
		start = min(n, len(r.changes))
	}
	end := len(r.changes)
	if count > 0 && int64(end-start) > count {
		end = start + int(count)
	}
	return append([]Change(nil), r.changes[start:end]...), nil
}
