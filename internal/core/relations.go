package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// Related is the outcome of a relation lookup. Applicable is false when the
// relation does not apply to the entity (no foreign key, or an unsaved parent
// for a has-many relation). Belongs-to relations fill One, which stays nil
// when the referenced record is missing; has-many relations fill Many.
type Related struct {
	Applicable bool
	One        Entity
	Many       []Entity
}

// Resolver fetches related records on demand through the data store.
type Resolver struct {
	store DataStore
}

// NewResolver constructs a resolver over store.
func NewResolver(store DataStore) *Resolver {
	return &Resolver{store: store}
}

// GetRelated resolves relation for e. Unknown (entity, relation) pairs are a
// programming error and return an error.
func (r *Resolver) GetRelated(ctx context.Context, e Entity, relation Relation, opts QueryOptions) (Related, error) {
	switch v := e.(type) {
	case Item:
		switch relation {
		case RelationCollection:
			if v.CollectionID == nil || *v.CollectionID == "" {
				return Related{}, nil
			}
			coll, found, err := r.ItemCollection(ctx, v)
			if err != nil || !found {
				return Related{Applicable: true}, err
			}
			return Related{Applicable: true, One: coll}, nil
		case RelationContainer:
			if v.ContainerID == nil || *v.ContainerID == "" {
				return Related{}, nil
			}
			container, found, err := r.ItemContainer(ctx, v)
			if err != nil || !found {
				return Related{Applicable: true}, err
			}
			return Related{Applicable: true, One: container}, nil
		case RelationContents:
			contents, ok, err := r.ItemContents(ctx, v, opts)
			if err != nil || !ok {
				return Related{Applicable: ok}, err
			}
			return Related{Applicable: true, Many: itemsToEntities(contents)}, nil
		}
	case Collection:
		if relation == RelationItems {
			items, ok, err := r.CollectionItems(ctx, v, opts)
			if err != nil || !ok {
				return Related{Applicable: ok}, err
			}
			return Related{Applicable: true, Many: itemsToEntities(items)}, nil
		}
	}
	return Related{}, fmt.Errorf("unknown relation %q for %s", relation, e.EntityType())
}

// ItemCollection loads the collection referenced by item. found is false when
// the item has no collection or the collection does not exist.
func (r *Resolver) ItemCollection(ctx context.Context, item Item) (Collection, bool, error) {
	if item.CollectionID == nil || *item.CollectionID == "" {
		return Collection{}, false, nil
	}
	e, err := r.store.GetDatum(ctx, EntityCollection, *item.CollectionID)
	if err != nil {
		return Collection{}, false, asStorageError("get collection", err)
	}
	coll, ok := e.(Collection)
	return coll, ok, nil
}

// ItemContainer loads the container item referenced by item.
func (r *Resolver) ItemContainer(ctx context.Context, item Item) (Item, bool, error) {
	if item.ContainerID == nil || *item.ContainerID == "" {
		return Item{}, false, nil
	}
	e, err := r.store.GetDatum(ctx, EntityItem, *item.ContainerID)
	if err != nil {
		return Item{}, false, asStorageError("get container", err)
	}
	container, ok := e.(Item)
	return container, ok, nil
}

// ItemContents lists the items held by item. ok is false for unsaved items.
func (r *Resolver) ItemContents(ctx context.Context, item Item, opts QueryOptions) ([]Item, bool, error) {
	if item.ID == "" {
		return nil, false, nil
	}
	items, err := r.queryItems(ctx, fields{"container_id": domain.Eq(item.ID)}, opts)
	return items, err == nil, err
}

// CollectionItems lists the items of coll. ok is false for unsaved collections.
func (r *Resolver) CollectionItems(ctx context.Context, coll Collection, opts QueryOptions) ([]Item, bool, error) {
	if coll.ID == "" {
		return nil, false, nil
	}
	items, err := r.queryItems(ctx, fields{"collection_id": domain.Eq(coll.ID)}, opts)
	return items, err == nil, err
}

func (r *Resolver) queryItems(ctx context.Context, where fields, opts QueryOptions) ([]Item, error) {
	data, err := r.store.GetData(ctx, EntityItem, domain.Where(where), opts)
	if err != nil {
		return nil, asStorageError("query items", err)
	}
	items := make([]Item, 0, len(data))
	for _, e := range data {
		if item, ok := e.(Item); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func itemsToEntities(items []Item) []Entity {
	out := make([]Entity, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
