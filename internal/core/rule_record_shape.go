package core

import (
	"context"
	"fmt"
	"strings"
)

// NewRecordShapeRule reports records that cannot be saved as typed entities:
// quarantined data, missing names, unknown item types and items without a
// collection.
func NewRecordShapeRule() Rule {
	return recordShapeRule{}
}

type recordShapeRule struct{}

func (recordShapeRule) Name() string { return "record_shape" }

func (recordShapeRule) Evaluate(_ context.Context, ev *Evaluation) error {
	meta := ev.Entity.Metadata()
	if !meta.IsValid() {
		if len(meta.Errors) == 0 {
			ev.Report("", "Data is malformed")
		}
		for _, msg := range meta.Errors {
			field, text, ok := strings.Cut(msg, ": ")
			if !ok || !isFieldName(field) {
				field, text = "", msg
			}
			ev.Report(field, text)
		}
		return nil
	}

	switch v := ev.Entity.(type) {
	case Collection:
		if strings.TrimSpace(v.Name) == "" {
			ev.Report("name", "Required")
		}
	case Item:
		if strings.TrimSpace(v.Name) == "" {
			ev.Report("name", "Required")
		}
		if v.ItemType != nil && *v.ItemType != "" && !v.ItemType.Known() {
			ev.Report("item_type", fmt.Sprintf("Invalid item type %q", *v.ItemType))
		}
		if !nonEmpty(v.CollectionID) {
			ev.Report("collection_id", "Required")
		}
	}
	return nil
}

func isFieldName(s string) bool {
	if s == "" || s == "json" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}
