// Package memory provides an in-memory implementation of the document store
// used for tests, ephemeral environments and as the working set of the SQL
// backed stores.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventorycore/internal/infra/persistence/codec"
	"inventorycore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.DataStore = (*Store)(nil)

// Record is a stored document plus its insertion sequence.
type Record struct {
	Seq      uint64          `json:"seq"`
	Document domain.Document `json:"document"`
}

// Snapshot is a serializable copy of the store contents in insertion order.
type Snapshot struct {
	Records []Record `json:"records"`
}

// CommitFunc runs under the store lock before a saved document becomes
// visible. Returning an error aborts the save and leaves state untouched.
type CommitFunc func(ctx context.Context, rec Record) error

type memoryState struct {
	docs map[domain.EntityType]map[string]Record
	seq  uint64
}

func newMemoryState() memoryState {
	return memoryState{docs: make(map[domain.EntityType]map[string]Record)}
}

func (s memoryState) bucket(t domain.EntityType) map[string]Record {
	return s.docs[t]
}

func (s *memoryState) put(rec Record) {
	b, ok := s.docs[rec.Document.Type]
	if !ok {
		b = make(map[string]Record)
		s.docs[rec.Document.Type] = b
	}
	b[rec.Document.ID] = rec
	if rec.Seq > s.seq {
		s.seq = rec.Seq
	}
}

// Store is a mutex-guarded document store with compare-and-swap revisions.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	nowFn    func() time.Time
	onCommit CommitFunc
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetCommitHook installs fn to run on every successful save.
func (s *Store) SetCommitHook(fn CommitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// SetNowFunc overrides the clock used for timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// ExportState copies every record, including soft-deleted ones, in insertion order.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, b := range s.state.docs {
		for _, rec := range b {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return Snapshot{Records: out}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := newMemoryState()
	for _, rec := range snapshot.Records {
		state.put(cloneRecord(rec))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// GetDatum returns the live record with the given identifier or nil.
func (s *Store) GetDatum(_ context.Context, t domain.EntityType, id string) (domain.Entity, error) {
	s.mu.RLock()
	rec, ok := s.state.bucket(t)[id]
	s.mu.RUnlock()
	if !ok || rec.Document.Deleted {
		return nil, nil
	}
	return decode(rec.Document)
}

// GetData returns live records matching cond.
func (s *Store) GetData(_ context.Context, t domain.EntityType, cond domain.Conditions, opts domain.QueryOptions) ([]domain.Entity, error) {
	s.mu.RLock()
	recs := s.match(t, cond)
	s.mu.RUnlock()

	sortRecords(t, recs, opts.Sort)
	recs = paginate(recs, opts.Skip, opts.Limit)

	out := make([]domain.Entity, 0, len(recs))
	for _, rec := range recs {
		e, err := decode(rec.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetDataCount counts live records matching cond.
func (s *Store) GetDataCount(_ context.Context, t domain.EntityType, cond domain.Conditions) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(t, cond)), nil
}

// SaveDatum inserts or replaces a record. The entity's revision must equal the
// stored revision; new records must carry no revision unless they replace a
// soft-deleted one.
func (s *Store) SaveDatum(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	doc, err := codec.Encode(e)
	if err != nil {
		return nil, &domain.StorageError{Op: "encode", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	existing, found := s.state.bucket(doc.Type)[doc.ID]
	switch {
	case found && existing.Document.Rev != doc.Rev && !(existing.Document.Deleted && doc.Rev == ""):
		return nil, &domain.ConflictError{Entity: doc.Type, ID: doc.ID, Rev: doc.Rev, CurrentRev: existing.Document.Rev}
	case !found && doc.Rev != "":
		return nil, &domain.ConflictError{Entity: doc.Type, ID: doc.ID, Rev: doc.Rev}
	}

	now := s.nowFn()
	rec := Record{Document: doc}
	if found {
		rec.Seq = existing.Seq
		rec.Document.CreatedAt = existing.Document.CreatedAt
		rec.Document.Rev = nextRev(existing.Document.Rev)
	} else {
		rec.Seq = s.state.seq + 1
		if rec.Document.CreatedAt.IsZero() {
			rec.Document.CreatedAt = now
		}
		rec.Document.Rev = nextRev("")
	}
	rec.Document.UpdatedAt = now

	if s.onCommit != nil {
		if err := s.onCommit(ctx, cloneRecord(rec)); err != nil {
			return nil, &domain.StorageError{Op: "commit", Err: err}
		}
	}
	s.state.put(rec)
	return decode(rec.Document)
}

func (s *Store) match(t domain.EntityType, cond domain.Conditions) []Record {
	var ids map[string]struct{}
	if cond.IDs != nil {
		ids = make(map[string]struct{}, len(cond.IDs))
		for _, id := range cond.IDs {
			ids[id] = struct{}{}
		}
	}
	var out []Record
	for id, rec := range s.state.bucket(t) {
		if rec.Document.Deleted {
			continue
		}
		if ids != nil {
			if _, ok := ids[id]; !ok {
				continue
			}
		}
		if !matchFields(t, rec.Document.Data, cond.Fields) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func matchFields(t domain.EntityType, data map[string]any, fields map[string]domain.Predicate) bool {
	for field, pred := range fields {
		v, present := data[codec.StorageField(t, field)]
		present = present && v != nil
		if want, ok := pred.ExistsOperand(); ok {
			if present != want {
				return false
			}
			continue
		}
		want, _ := pred.Value()
		if want == nil {
			if present {
				return false
			}
			continue
		}
		if !present || !equalValues(v, want) {
			return false
		}
	}
	return true
}

// equalValues compares a stored value a with a wanted value b. A wanted
// value of another scalar kind is compared through its text form, so "5"
// and 5 match either way round.
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		if sb, ok := toString(b); ok {
			fb, err := strconv.ParseFloat(sb, 64)
			return err == nil && fa == fb
		}
		return false
	}
	if sa, ok := toString(a); ok {
		sb, ok := scalarText(b)
		return ok && sa == sb
	}
	if ba, ok := a.(bool); ok {
		if sb, ok := toString(b); ok {
			bb, err := strconv.ParseBool(sb)
			return err == nil && ba == bb
		}
	}
	return reflect.DeepEqual(a, b)
}

func scalarText(v any) (string, bool) {
	if s, ok := toString(v); ok {
		return s, true
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b), true
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func sortRecords(t domain.EntityType, recs []Record, fields []domain.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, f := range fields {
			c := compareField(t, recs[i].Document, recs[j].Document, f.Field)
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(t domain.EntityType, a, b domain.Document, field string) int {
	switch field {
	case domain.SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case domain.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	key := codec.StorageField(t, field)
	va, oka := a.Data[key]
	vb, okb := b.Data[key]
	oka = oka && va != nil
	okb = okb && vb != nil
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return 1
	case !okb:
		return -1
	}
	if fa, ok := toFloat(va); ok {
		if fb, ok := toFloat(vb); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(va), fmt.Sprint(vb))
}

func paginate(recs []Record, skip, limit int) []Record {
	if skip > 0 {
		if skip >= len(recs) {
			return nil
		}
		recs = recs[skip:]
	}
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}

func decode(doc domain.Document) (domain.Entity, error) {
	e, err := codec.Decode(doc)
	if err != nil {
		return nil, &domain.StorageError{Op: "decode", Err: err}
	}
	return e, nil
}

// nextRev advances a "<n>-<hex>" revision token.
func nextRev(prev string) string {
	n := 0
	if head, _, ok := strings.Cut(prev, "-"); ok {
		n, _ = strconv.Atoi(head)
	}
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%d-%s", n+1, hex.EncodeToString(b[:]))
}

func cloneRecord(rec Record) Record {
	cp := rec
	cp.Document.Data = cloneValue(rec.Document.Data).(map[string]any)
	cp.Document.Errors = append([]string(nil), rec.Document.Errors...)
	return cp
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}
