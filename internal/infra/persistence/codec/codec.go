// Package codec translates between typed entities and the documents written by
// the persistence adapters. Storage field names differ from the in-memory
// names for a handful of item fields; this package owns that mapping.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"inventorycore/pkg/domain"
)

var storageNames = map[domain.EntityType]map[string]string{
	domain.EntityItem: {
		"collection_id":               "collection",
		"container_id":                "dedicated_container",
		"_individual_asset_reference": "computed_individual_asset_reference",
		"_can_contain_items":          "computed_can_contain_items",
		"_show_in_collection":         "computed_show_in_collection",
	},
}

var memoryNames = func() map[domain.EntityType]map[string]string {
	out := make(map[domain.EntityType]map[string]string, len(storageNames))
	for t, names := range storageNames {
		rev := make(map[string]string, len(names))
		for mem, stored := range names {
			rev[stored] = mem
		}
		out[t] = rev
	}
	return out
}()

// StorageField maps an in-memory field name to its storage name.
func StorageField(t domain.EntityType, field string) string {
	if name, ok := storageNames[t][field]; ok {
		return name
	}
	return field
}

// MemoryField maps a storage field name back to its in-memory name.
func MemoryField(t domain.EntityType, field string) string {
	if name, ok := memoryNames[t][field]; ok {
		return name
	}
	return field
}

// Encode converts an entity into its persisted document form. Invalid
// entities are written back with their raw fields and error payload.
func Encode(e domain.Entity) (domain.Document, error) {
	meta := e.Metadata()
	t := e.EntityType()
	doc := domain.Document{
		Type:      t,
		ID:        meta.ID,
		Rev:       meta.Rev,
		Deleted:   meta.Deleted,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
		Valid:     !meta.Invalid,
	}

	var fields map[string]any
	if meta.Invalid {
		fields = meta.Raw
		doc.Errors = append([]string(nil), meta.Errors...)
	} else {
		payload, err := json.Marshal(e)
		if err != nil {
			return domain.Document{}, fmt.Errorf("encode %s: %w", t, err)
		}
		if err := json.Unmarshal(payload, &fields); err != nil {
			return domain.Document{}, fmt.Errorf("encode %s: %w", t, err)
		}
	}
	doc.Data = rename(fields, func(k string) string { return StorageField(t, k) })
	return doc, nil
}

// Decode converts a persisted document into a typed entity. Documents whose
// data does not fit the typed shape come back as invalid entities carrying the
// raw fields; only unknown document types are an error.
func Decode(doc domain.Document) (domain.Entity, error) {
	fields := rename(doc.Data, func(k string) string { return MemoryField(doc.Type, k) })
	meta := domain.Meta{
		ID:        doc.ID,
		Rev:       doc.Rev,
		Deleted:   doc.Deleted,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}

	target, err := newEntity(doc.Type)
	if err != nil {
		return nil, err
	}
	if !doc.Valid {
		return quarantine(target, meta, fields, doc.Errors), nil
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return quarantine(target, meta, fields, []string{err.Error()}), nil
	}
	decoded, err := decodeTyped(doc.Type, payload)
	if err != nil {
		return quarantine(target, meta, fields, []string{describe(err)}), nil
	}
	return decoded.WithMetadata(meta), nil
}

func decodeTyped(t domain.EntityType, payload []byte) (domain.Entity, error) {
	switch t {
	case domain.EntityCollection:
		var c domain.Collection
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		if c.Name == "" {
			return nil, fmt.Errorf("name: required")
		}
		return c, nil
	case domain.EntityItem:
		var i domain.Item
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, err
		}
		if i.Name == "" {
			return nil, fmt.Errorf("name: required")
		}
		if i.ItemType != nil && *i.ItemType != "" && !i.ItemType.Known() {
			return nil, fmt.Errorf("item_type: unknown value %q", *i.ItemType)
		}
		return i, nil
	case domain.EntityConfig:
		var c domain.Config
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		if c.UUID == "" {
			return nil, fmt.Errorf("uuid: required")
		}
		return c, nil
	case domain.EntityDBSharing:
		var s domain.DBSharing
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// describe renders decode failures as "<field>: <problem>" where possible.
func describe(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return err.Error()
}

func newEntity(t domain.EntityType) (domain.Entity, error) {
	switch t {
	case domain.EntityCollection:
		return domain.Collection{}, nil
	case domain.EntityItem:
		return domain.Item{}, nil
	case domain.EntityConfig:
		return domain.Config{}, nil
	case domain.EntityDBSharing:
		return domain.DBSharing{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

func quarantine(target domain.Entity, meta domain.Meta, fields map[string]any, errs []string) domain.Entity {
	meta.Invalid = true
	meta.Raw = fields
	if meta.Raw == nil {
		meta.Raw = map[string]any{}
	}
	meta.Errors = errs
	return target.WithMetadata(meta)
}

func rename(fields map[string]any, name func(string) string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[name(k)] = v
	}
	return out
}
