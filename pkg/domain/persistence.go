package domain

import (
	"context"
	"time"
)

// Document is the persisted shape of an entity. Data uses storage field names,
// which the persistence codec maps to and from the typed entity fields.
type Document struct {
	Type      EntityType     `json:"type"`
	ID        string         `json:"id"`
	Rev       string         `json:"rev"`
	Deleted   bool           `json:"deleted"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Valid     bool           `json:"valid"`
	Data      map[string]any `json:"data"`
	Errors    []string       `json:"errors,omitempty"`
}

// Predicate matches a single field. The zero value never matches.
type Predicate struct {
	value  any
	exists *bool
}

// Eq matches documents whose field equals v.
func Eq(v any) Predicate { return Predicate{value: v} }

// Exists matches documents whose field is present (set) or absent.
func Exists(present bool) Predicate { return Predicate{exists: &present} }

// Value returns the equality operand and whether the predicate is an equality test.
func (p Predicate) Value() (any, bool) { return p.value, p.exists == nil }

// ExistsOperand returns the existence operand and whether the predicate is an existence test.
func (p Predicate) ExistsOperand() (bool, bool) {
	if p.exists == nil {
		return false, false
	}
	return *p.exists, true
}

// Conditions selects documents either by identifier or by field predicates.
// Field names are in-memory names (for example collection_id).
type Conditions struct {
	IDs    []string
	Fields map[string]Predicate
}

// ByIDs selects the listed identifiers.
func ByIDs(ids ...string) Conditions { return Conditions{IDs: ids} }

// Where selects documents matching every predicate.
func Where(fields map[string]Predicate) Conditions { return Conditions{Fields: fields} }

// Sort keys addressing document metadata rather than data fields.
const (
	SortCreatedAt = "__created_at"
	SortUpdatedAt = "__updated_at"
)

// SortField orders results by a field.
type SortField struct {
	Field string
	Desc  bool
}

// QueryOptions paginates and orders GetData results. Without Sort, results
// follow insertion order.
type QueryOptions struct {
	Skip  int
	Limit int
	Sort  []SortField
}

// DataStore is the persistence adapter contract consumed by the core.
// Deleted records are invisible to reads.
type DataStore interface {
	// GetDatum returns nil when the record does not exist.
	GetDatum(ctx context.Context, t EntityType, id string) (Entity, error)
	GetData(ctx context.Context, t EntityType, cond Conditions, opts QueryOptions) ([]Entity, error)
	GetDataCount(ctx context.Context, t EntityType, cond Conditions) (int, error)
	// SaveDatum inserts or replaces a record, assigning a new revision. The
	// supplied revision must match the stored one or a *ConflictError is returned.
	SaveDatum(ctx context.Context, e Entity) (Entity, error)
}

// Relation names a traversal from one entity kind to related records.
type Relation string

// Supported relations.
const (
	// RelationCollection resolves an item's collection.
	RelationCollection Relation = "collection"
	// RelationContainer resolves an item's container item.
	RelationContainer Relation = "container"
	// RelationContents lists the items held by a container item.
	RelationContents Relation = "contents"
	// RelationItems lists the items of a collection.
	RelationItems Relation = "items"
)
