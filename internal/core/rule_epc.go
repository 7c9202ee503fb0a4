package core

import (
	"context"
	"fmt"

	"inventorycore/internal/epc"
	"inventorycore/pkg/domain"
)

// NewEPCTagURIRule requires the EPC tag URI to encode into memory bank hex.
func NewEPCTagURIRule() Rule {
	return epcTagURIRule{}
}

type epcTagURIRule struct{}

func (epcTagURIRule) Name() string { return "epc_tag_uri" }

func (epcTagURIRule) Evaluate(_ context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok || ev.Shared || !nonEmpty(item.EPCTagURI) {
		return nil
	}
	if _, err := epc.EncodeEPCHex(*item.EPCTagURI); err != nil {
		ev.Report("epc_tag_uri", encodingMessage(err))
	}
	return nil
}

// NewEPCMemoryBankUniquenessRule requires memory bank contents to be unique
// among items and distinct from every other item's scanned contents. It is
// skipped when the asset reference already conflicts.
func NewEPCMemoryBankUniquenessRule() Rule {
	return epcMemoryBankUniquenessRule{}
}

type epcMemoryBankUniquenessRule struct{}

func (epcMemoryBankUniquenessRule) Name() string { return "epc_memory_bank_uniqueness" }

func (epcMemoryBankUniquenessRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok || ev.Shared || ev.iarConflict || !nonEmpty(item.RFIDTagEPCMemoryBankContents) {
		return nil
	}
	hex := *item.RFIDTagEPCMemoryBankContents

	checks := []struct {
		field  string
		suffix string
	}{
		{field: "rfid_tag_epc_memory_bank_contents"},
		{field: "actual_rfid_tag_epc_memory_bank_contents", suffix: " as the actual RFID EPC memory bank contents"},
	}
	for _, check := range checks {
		same, err := ev.Store.GetData(ctx, EntityItem, domain.Where(fields{
			check.field: domain.Eq(hex),
		}), QueryOptions{})
		if err != nil {
			return asStorageError("query items", err)
		}
		if other := firstOther(same, item.ID); other != nil {
			ev.Report("rfid_tag_epc_memory_bank_contents", fmt.Sprintf(
				"RFID tag EPC memory bank contents should be unique, but %q is already used by item %s%s", hex, describeItem(other), check.suffix))
		}
	}
	return nil
}
