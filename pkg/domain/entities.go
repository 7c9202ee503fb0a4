// Package domain defines the persistent entity shapes, validation issues and
// storage contracts used by inventorycore.
package domain

import "time"

// EntityType identifies the type of record stored in the document database.
type EntityType string

// Supported entity type identifiers used as document type tags.
const (
	// EntityCollection identifies a collection record.
	EntityCollection EntityType = "collection"
	// EntityItem identifies an item record.
	EntityItem EntityType = "item"
	// EntityConfig identifies the per-database configuration singleton.
	EntityConfig EntityType = "config"
	// EntityDBSharing identifies a database sharing permission record.
	EntityDBSharing EntityType = "db_sharing"
)

// ItemType enumerates the item variants. An unset item type is a plain item.
type ItemType string

// Canonical item types.
const (
	ItemTypeContainer        ItemType = "container"
	ItemTypeGenericContainer ItemType = "generic_container"
	ItemTypeItemWithParts    ItemType = "item_with_parts"
	ItemTypeConsumable       ItemType = "consumable"
)

// Known reports whether t is one of the canonical item types.
func (t ItemType) Known() bool {
	switch t {
	case ItemTypeContainer, ItemTypeGenericContainer, ItemTypeItemWithParts, ItemTypeConsumable:
		return true
	}
	return false
}

// CanContainItems reports whether items of this type may hold other items.
func (t ItemType) CanContainItems() bool {
	switch t {
	case ItemTypeContainer, ItemTypeGenericContainer, ItemTypeItemWithParts:
		return true
	}
	return false
}

// PermissionWrite grants mutation of records shared from another database.
const PermissionWrite = "write"

// ConfigID is the fixed document identifier of the configuration singleton.
const ConfigID = "0000-config"

// Meta carries the bookkeeping fields every persisted entity has.
// A zero Meta describes a new, well-formed entity.
type Meta struct {
	ID        string
	Rev       string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
	// Invalid marks a quarantined record whose stored data could not be
	// decoded into its typed shape. Raw and Errors are only set when Invalid.
	Invalid bool
	Raw     map[string]any
	Errors  []string
}

// IsValid reports whether the record decoded cleanly.
func (m Meta) IsValid() bool { return !m.Invalid }

func (m Meta) clone() Meta {
	cp := m
	if m.Raw != nil {
		cp.Raw = make(map[string]any, len(m.Raw))
		for k, v := range m.Raw {
			cp.Raw[k] = v
		}
	}
	cp.Errors = append([]string(nil), m.Errors...)
	return cp
}

// Entity is the closed set of record kinds handled by the data layer.
type Entity interface {
	EntityType() EntityType
	Metadata() Meta
	// WithMetadata returns a copy of the entity carrying meta.
	WithMetadata(meta Meta) Entity
	// Owner returns the config UUID that owns the record, if any.
	Owner() *string
	sealed()
}

// Collection is a named grouping of items.
type Collection struct {
	Meta                      `json:"-"`
	Name                      string  `json:"name"`
	IconName                  *string `json:"icon_name,omitempty"`
	IconColor                 *string `json:"icon_color,omitempty"`
	CollectionReferenceNumber *string `json:"collection_reference_number,omitempty"`
	ConfigUUID                *string `json:"config_uuid,omitempty"`
}

// Item is a trackable object, optionally nested inside a container item.
type Item struct {
	Meta                                    `json:"-"`
	Name                                    string    `json:"name"`
	IconName                                *string   `json:"icon_name,omitempty"`
	IconColor                               *string   `json:"icon_color,omitempty"`
	ItemType                                *ItemType `json:"item_type,omitempty"`
	CollectionID                            *string   `json:"collection_id,omitempty"`
	ContainerID                             *string   `json:"container_id,omitempty"`
	AlwaysShowInCollection                  *bool     `json:"always_show_in_collection,omitempty"`
	ItemReferenceNumber                     *string   `json:"item_reference_number,omitempty"`
	Serial                                  *int      `json:"serial,omitempty"`
	IndividualAssetReference                *string   `json:"_individual_asset_reference,omitempty"`
	EPCTagURI                               *string   `json:"epc_tag_uri,omitempty"`
	EPCManuallySet                          *bool     `json:"epc_manually_set,omitempty"`
	RFIDTagEPCMemoryBankContents            *string   `json:"rfid_tag_epc_memory_bank_contents,omitempty"`
	RFIDTagEPCMemoryBankContentsManuallySet *bool     `json:"rfid_tag_epc_memory_bank_contents_manually_set,omitempty"`
	ActualRFIDTagEPCMemoryBankContents      *string   `json:"actual_rfid_tag_epc_memory_bank_contents,omitempty"`
	RFIDTagAccessPassword                   *string   `json:"rfid_tag_access_password,omitempty"`
	UseMixedRFIDTagAccessPassword           *bool     `json:"use_mixed_rfid_tag_access_password,omitempty"`
	CanContainItems                         *bool     `json:"_can_contain_items,omitempty"`
	ShowInCollection                        *bool     `json:"_show_in_collection,omitempty"`
	ConsumableStockQuantity                 *int      `json:"consumable_stock_quantity,omitempty"`
	ConsumableWillNotRestock                *bool     `json:"consumable_will_not_restock,omitempty"`
	Notes                                   *string   `json:"notes,omitempty"`
	ModelName                               *string   `json:"model_name,omitempty"`
	PurchasedFrom                           *string   `json:"purchased_from,omitempty"`
	ConfigUUID                              *string   `json:"config_uuid,omitempty"`
}

// Config holds the per-database tag encoding parameters and identity.
type Config struct {
	Meta                                  `json:"-"`
	UUID                                  string `json:"uuid"`
	RFIDTagCompanyPrefix                  string `json:"rfid_tag_company_prefix"`
	RFIDTagIndividualAssetReferencePrefix string `json:"rfid_tag_individual_asset_reference_prefix"`
	RFIDTagAccessPassword                 string `json:"rfid_tag_access_password"`
	DefaultUseMixedRFIDTagAccessPassword  bool   `json:"default_use_mixed_rfid_tag_access_password"`
	RFIDTagAccessPasswordEncoding         string `json:"rfid_tag_access_password_encoding,omitempty"`
}

// DBSharing records the permissions one database grants to another.
type DBSharing struct {
	Meta        `json:"-"`
	Permissions []string `json:"permissions"`
}

// DBSharingID builds the sharing record identifier for source shared to target.
func DBSharingID(sourceConfigUUID, targetConfigUUID string) string {
	return sourceConfigUUID + "--" + targetConfigUUID
}

// Allows reports whether the sharing record grants permission.
func (s DBSharing) Allows(permission string) bool {
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (Collection) EntityType() EntityType { return EntityCollection }
func (Item) EntityType() EntityType       { return EntityItem }
func (Config) EntityType() EntityType     { return EntityConfig }
func (DBSharing) EntityType() EntityType  { return EntityDBSharing }

func (c Collection) Metadata() Meta { return c.Meta }
func (i Item) Metadata() Meta       { return i.Meta }
func (c Config) Metadata() Meta     { return c.Meta }
func (s DBSharing) Metadata() Meta  { return s.Meta }

func (c Collection) WithMetadata(meta Meta) Entity {
	cp := c.Clone()
	cp.Meta = meta.clone()
	return cp
}

func (i Item) WithMetadata(meta Meta) Entity {
	cp := i.Clone()
	cp.Meta = meta.clone()
	return cp
}

func (c Config) WithMetadata(meta Meta) Entity {
	cp := c
	cp.Meta = meta.clone()
	return cp
}

func (s DBSharing) WithMetadata(meta Meta) Entity {
	cp := s
	cp.Permissions = append([]string(nil), s.Permissions...)
	cp.Meta = meta.clone()
	return cp
}

func (c Collection) Owner() *string { return c.ConfigUUID }
func (i Item) Owner() *string       { return i.ConfigUUID }
func (c Config) Owner() *string     { return nil }
func (DBSharing) Owner() *string    { return nil }

func (Collection) sealed() {}
func (Item) sealed()       {}
func (Config) sealed()     {}
func (DBSharing) sealed()  {}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	cp := c
	cp.Meta = c.Meta.clone()
	cp.IconName = clonePtr(c.IconName)
	cp.IconColor = clonePtr(c.IconColor)
	cp.CollectionReferenceNumber = clonePtr(c.CollectionReferenceNumber)
	cp.ConfigUUID = clonePtr(c.ConfigUUID)
	return cp
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	cp := i
	cp.Meta = i.Meta.clone()
	cp.IconName = clonePtr(i.IconName)
	cp.IconColor = clonePtr(i.IconColor)
	cp.ItemType = clonePtr(i.ItemType)
	cp.CollectionID = clonePtr(i.CollectionID)
	cp.ContainerID = clonePtr(i.ContainerID)
	cp.AlwaysShowInCollection = clonePtr(i.AlwaysShowInCollection)
	cp.ItemReferenceNumber = clonePtr(i.ItemReferenceNumber)
	cp.Serial = clonePtr(i.Serial)
	cp.IndividualAssetReference = clonePtr(i.IndividualAssetReference)
	cp.EPCTagURI = clonePtr(i.EPCTagURI)
	cp.EPCManuallySet = clonePtr(i.EPCManuallySet)
	cp.RFIDTagEPCMemoryBankContents = clonePtr(i.RFIDTagEPCMemoryBankContents)
	cp.RFIDTagEPCMemoryBankContentsManuallySet = clonePtr(i.RFIDTagEPCMemoryBankContentsManuallySet)
	cp.ActualRFIDTagEPCMemoryBankContents = clonePtr(i.ActualRFIDTagEPCMemoryBankContents)
	cp.RFIDTagAccessPassword = clonePtr(i.RFIDTagAccessPassword)
	cp.UseMixedRFIDTagAccessPassword = clonePtr(i.UseMixedRFIDTagAccessPassword)
	cp.CanContainItems = clonePtr(i.CanContainItems)
	cp.ShowInCollection = clonePtr(i.ShowInCollection)
	cp.ConsumableStockQuantity = clonePtr(i.ConsumableStockQuantity)
	cp.ConsumableWillNotRestock = clonePtr(i.ConsumableWillNotRestock)
	cp.Notes = clonePtr(i.Notes)
	cp.ModelName = clonePtr(i.ModelName)
	cp.PurchasedFrom = clonePtr(i.PurchasedFrom)
	cp.ConfigUUID = clonePtr(i.ConfigUUID)
	return cp
}

// IsContainer reports whether the item's computed container flag is set.
func (i Item) IsContainer() bool {
	return i.CanContainItems != nil && *i.CanContainItems
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. It keeps optional field literals short.
func Ptr[T any](v T) *T { return &v }

// Deref returns the value behind p or the zero value when p is nil.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
