package core

import (
	"context"
	"errors"
	"fmt"

	"inventorycore/internal/epc"
	"inventorycore/pkg/domain"
)

// NewIARUniquenessRule requires individual asset references to be unique
// within the local configuration.
func NewIARUniquenessRule() Rule {
	return iarUniquenessRule{}
}

type iarUniquenessRule struct{}

func (iarUniquenessRule) Name() string { return "iar_uniqueness" }

func (iarUniquenessRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok || ev.Shared || !nonEmpty(item.IndividualAssetReference) {
		return nil
	}
	iar := *item.IndividualAssetReference
	same, err := ev.Store.GetData(ctx, EntityItem, domain.Where(fields{
		"config_uuid":                 domain.Eq(ev.Config.UUID),
		"_individual_asset_reference": domain.Eq(iar),
	}), QueryOptions{})
	if err != nil {
		return asStorageError("query items", err)
	}
	if other := firstOther(same, item.ID); other != nil {
		ev.iarConflict = true
		ev.Report("item_reference_number", fmt.Sprintf(
			"Individual Asset Reference should be unique, but %q is already used by item %s", iar, describeItem(other)))
	}
	return nil
}

// NewIAREncodingRule requires the item and collection reference numbers to
// encode into an individual asset reference.
func NewIAREncodingRule() Rule {
	return iarEncodingRule{}
}

type iarEncodingRule struct{}

func (iarEncodingRule) Name() string { return "iar_encoding" }

func (iarEncodingRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok || ev.Shared || !nonEmpty(item.ItemReferenceNumber) {
		return nil
	}
	coll, err := ev.Collection(ctx)
	if err != nil {
		return err
	}
	if coll == nil || coll.CollectionReferenceNumber == nil {
		return nil
	}
	_, err = epc.EncodeIndividualAssetReference(epc.IARParams{
		CompanyPrefix:       ev.Config.RFIDTagCompanyPrefix,
		IARPrefix:           ev.Config.RFIDTagIndividualAssetReferencePrefix,
		CollectionReference: *coll.CollectionReferenceNumber,
		ItemReference:       *item.ItemReferenceNumber,
		Serial:              domain.Deref(item.Serial),
	})
	if err != nil {
		ev.Report("item_reference_number", encodingMessage(err))
	}
	return nil
}

func encodingMessage(err error) string {
	var encErr *epc.EncodingError
	if errors.As(err, &encErr) {
		return encErr.Message
	}
	return err.Error()
}

func describeItem(e Entity) string {
	if item, ok := e.(Item); ok && item.Name != "" {
		return fmt.Sprintf("%q (ID: %s)", item.Name, item.ID)
	}
	return e.Metadata().ID
}
