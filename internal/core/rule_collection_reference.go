package core

import (
	"context"
	"fmt"

	"inventorycore/internal/epc"
	"inventorycore/pkg/domain"
)

// NewCollectionReferenceRule checks the width and per-config uniqueness of
// collection reference numbers.
func NewCollectionReferenceRule() Rule {
	return collectionReferenceRule{}
}

type collectionReferenceRule struct{}

func (collectionReferenceRule) Name() string { return "collection_reference" }

func (collectionReferenceRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	coll, ok := ev.Entity.(Collection)
	if !ok || ev.Shared || !nonEmpty(coll.CollectionReferenceNumber) {
		return nil
	}
	ref := *coll.CollectionReferenceNumber

	digits := epc.CollectionReferenceDigits(ev.Config.RFIDTagCompanyPrefix, ev.Config.RFIDTagIndividualAssetReferencePrefix)
	if len(ref) > digits {
		ev.Report("collection_reference_number", fmt.Sprintf("Should have %d digits", digits))
	}

	same, err := ev.Store.GetData(ctx, EntityCollection, domain.Where(fields{
		"config_uuid":                 domain.Eq(ev.Config.UUID),
		"collection_reference_number": domain.Eq(ref),
	}), QueryOptions{})
	if err != nil {
		return asStorageError("query collections", err)
	}
	if other := firstOther(same, coll.ID); other != nil {
		ev.Report("collection_reference_number", fmt.Sprintf(
			"Must be unique (reference number %s is already taken by collection %q)", ref, displayName(other)))
	}
	return nil
}

// firstOther returns the first entity whose identifier differs from id.
func firstOther(entities []Entity, id string) Entity {
	for _, e := range entities {
		if e.Metadata().ID != id {
			return e
		}
	}
	return nil
}

func displayName(e Entity) string {
	switch v := e.(type) {
	case Collection:
		if v.Name != "" {
			return v.Name
		}
	case Item:
		if v.Name != "" {
			return v.Name
		}
	}
	return e.Metadata().ID
}
