package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inventorycore/internal/epc"
	"inventorycore/internal/logging"
	"inventorycore/pkg/domain"
)

// Normalizer derives computed fields and applies defaults before a save.
type Normalizer struct {
	config   *ConfigProvider
	resolver *Resolver
	logger   *zap.Logger
	newUUID  func() string
}

// NewNormalizer constructs a normalizer. A nil logger discards output.
func NewNormalizer(config *ConfigProvider, resolver *Resolver, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		config:   config,
		resolver: resolver,
		logger:   logging.Module(logger, "data/beforeSave"),
		newUUID:  uuid.NewString,
	}
}

// BeforeSave returns the normalized form of e; e itself is left untouched.
// Running it again on its own output yields the same entity. Tag encoding
// failures are logged and the affected field cleared; validation reports them.
func (n *Normalizer) BeforeSave(ctx context.Context, e Entity) (Entity, error) {
	if !e.Metadata().IsValid() {
		return e, nil
	}
	cfg, err := n.config.GetConfig(ctx, ConfigOptions{EnsureSaved: true})
	if err != nil {
		return nil, err
	}
	switch v := e.(type) {
	case Collection:
		return n.collection(cfg, v.Clone()), nil
	case Item:
		return n.item(ctx, cfg, v.Clone())
	}
	return e, nil
}

func isFromSharedDB(owner *string, cfg Config) bool {
	return owner != nil && *owner != cfg.UUID
}

func (n *Normalizer) collection(cfg Config, c Collection) Collection {
	shared := isFromSharedDB(c.ConfigUUID, cfg)
	if c.ConfigUUID == nil || *c.ConfigUUID == "" {
		c.ConfigUUID = domain.Ptr(cfg.UUID)
	}
	c.Name = strings.TrimSpace(c.Name)

	if !shared && c.CollectionReferenceNumber != nil && *c.CollectionReferenceNumber != "" {
		digits := epc.CollectionReferenceDigits(cfg.RFIDTagCompanyPrefix, cfg.RFIDTagIndividualAssetReferencePrefix)
		c.CollectionReferenceNumber = domain.Ptr(padStart(*c.CollectionReferenceNumber, digits))
	}
	return c
}

func (n *Normalizer) item(ctx context.Context, cfg Config, item Item) (Entity, error) {
	shared := isFromSharedDB(item.ConfigUUID, cfg)

	coll, hasColl, err := n.resolver.ItemCollection(ctx, item)
	if err != nil {
		return nil, err
	}
	if hasColl && nonEmpty(coll.ConfigUUID) {
		// Items created inside a shared collection belong to its owner.
		item.ConfigUUID = domain.Ptr(*coll.ConfigUUID)
	} else if !nonEmpty(item.ConfigUUID) {
		item.ConfigUUID = domain.Ptr(cfg.UUID)
	}

	item.Name = strings.TrimSpace(item.Name)
	item.Notes = trimPtr(item.Notes)
	item.ModelName = trimPtr(item.ModelName)
	item.PurchasedFrom = trimPtr(item.PurchasedFrom)

	if item.ItemType != nil && item.ItemType.CanContainItems() {
		item.CanContainItems = domain.Ptr(true)
	} else {
		item.CanContainItems = nil
	}

	if domain.Deref(item.ItemType) == domain.ItemTypeConsumable {
		if item.ConsumableStockQuantity == nil {
			item.ConsumableStockQuantity = domain.Ptr(1)
			item.ConsumableWillNotRestock = domain.Ptr(false)
		}
	} else {
		item.ConsumableStockQuantity = nil
		item.ConsumableWillNotRestock = nil
	}

	if !shared {
		n.deriveTagIdentifiers(cfg, &item, coll, hasColl)
	}

	item.ShowInCollection = domain.Ptr(true)
	if !domain.Deref(item.AlwaysShowInCollection) && nonEmpty(item.ContainerID) {
		container, found, err := n.resolver.ItemContainer(ctx, item)
		if err != nil {
			return nil, err
		}
		if found && domain.Deref(container.CollectionID) == domain.Deref(item.CollectionID) {
			item.ShowInCollection = domain.Ptr(false)
		}
	}

	item.ItemReferenceNumber = emptyToNil(item.ItemReferenceNumber)
	if domain.Deref(item.Serial) == 0 {
		item.Serial = nil
	}
	item.EPCTagURI = emptyToNil(item.EPCTagURI)
	item.RFIDTagEPCMemoryBankContents = emptyToNil(item.RFIDTagEPCMemoryBankContents)
	item.ActualRFIDTagEPCMemoryBankContents = emptyToNil(item.ActualRFIDTagEPCMemoryBankContents)
	if item.ItemType != nil && *item.ItemType == "" {
		item.ItemType = nil
	}
	return item, nil
}

func (n *Normalizer) deriveTagIdentifiers(cfg Config, item *Item, coll Collection, hasColl bool) {
	item.IndividualAssetReference = nil
	if nonEmpty(item.ItemReferenceNumber) && hasColl && coll.IsValid() {
		iar, err := epc.EncodeIndividualAssetReference(epc.IARParams{
			CompanyPrefix:       cfg.RFIDTagCompanyPrefix,
			IARPrefix:           cfg.RFIDTagIndividualAssetReferencePrefix,
			CollectionReference: domain.Deref(coll.CollectionReferenceNumber),
			ItemReference:       *item.ItemReferenceNumber,
			Serial:              domain.Deref(item.Serial),
		})
		if err != nil {
			n.logger.Warn("individual asset reference not derived", zap.String("item_id", item.ID), zap.Error(err))
		} else {
			item.IndividualAssetReference = &iar
		}
	}

	if !domain.Deref(item.EPCManuallySet) {
		item.EPCTagURI = nil
		if nonEmpty(item.IndividualAssetReference) {
			uri, err := epc.EncodeGIAI(cfg.RFIDTagCompanyPrefix, *item.IndividualAssetReference)
			if err != nil {
				n.logger.Warn("epc tag uri not derived", zap.String("item_id", item.ID), zap.Error(err))
			} else {
				item.EPCTagURI = &uri
			}
		}
	}

	if !domain.Deref(item.RFIDTagEPCMemoryBankContentsManuallySet) {
		if nonEmpty(item.EPCTagURI) {
			hex, err := epc.EncodeEPCHex(*item.EPCTagURI)
			if err != nil {
				// The previous contents are kept; validation flags the URI.
				n.logger.Warn("epc memory bank contents not derived", zap.String("item_id", item.ID), zap.Error(err))
			} else {
				item.RFIDTagEPCMemoryBankContents = &hex
			}
		} else {
			item.RFIDTagEPCMemoryBankContents = nil
		}
	}

	if item.UseMixedRFIDTagAccessPassword == nil {
		item.UseMixedRFIDTagAccessPassword = domain.Ptr(cfg.DefaultUseMixedRFIDTagAccessPassword)
	}
	if *item.UseMixedRFIDTagAccessPassword && !nonEmpty(item.RFIDTagAccessPassword) {
		segment, _, _ := strings.Cut(n.newUUID(), "-")
		item.RFIDTagAccessPassword = &segment
	}
}

func padStart(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func nonEmpty(p *string) bool { return p != nil && *p != "" }

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return domain.Ptr(strings.TrimSpace(*p))
}

func emptyToNil(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
