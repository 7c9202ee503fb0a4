package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewItemCollectionRule requires an item's collection to exist and to belong
// to the same configuration as the item.
func NewItemCollectionRule() Rule {
	return itemCollectionRule{}
}

type itemCollectionRule struct{}

func (itemCollectionRule) Name() string { return "item_collection" }

func (itemCollectionRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok || !nonEmpty(item.CollectionID) {
		return nil
	}
	coll, err := ev.Collection(ctx)
	if err != nil {
		return err
	}
	if coll == nil {
		ev.Report("collection_id", fmt.Sprintf("Can't find collection with ID %q", *item.CollectionID))
		return nil
	}
	if coll.ConfigUUID != nil && domain.Deref(item.ConfigUUID) != *coll.ConfigUUID {
		ev.Report("collection_id", fmt.Sprintf(
			"Collection %q has a different config_uuid (%q) with your item (%q), you might be attempting to move a shared item to your own collection, which is not supported",
			displayName(*coll), *coll.ConfigUUID, domain.Deref(item.ConfigUUID)))
	}
	return nil
}

// NewItemContainerRule requires an item's container to exist and to be able
// to contain items.
func NewItemContainerRule() Rule {
	return itemContainerRule{}
}

type itemContainerRule struct{}

func (itemContainerRule) Name() string { return "item_container" }

func (itemContainerRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok || !nonEmpty(item.ContainerID) {
		return nil
	}
	container, found, err := ev.Resolver.ItemContainer(ctx, item)
	if err != nil {
		return err
	}
	switch {
	case !found:
		ev.Report("container_id", fmt.Sprintf("Can't find item with ID %q", *item.ContainerID))
	case !container.IsContainer():
		ev.Report("container_id", fmt.Sprintf("Item with ID %q can not be a container", *item.ContainerID))
	case container.ID == item.ID:
		ev.Report("container_id", "An item can not contain itself")
	}
	return nil
}

// NewItemTypeContentsRule keeps items that hold other items on a container type.
func NewItemTypeContentsRule() Rule {
	return itemTypeContentsRule{}
}

type itemTypeContentsRule struct{}

func (itemTypeContentsRule) Name() string { return "item_type_contents" }

func (itemTypeContentsRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	item, ok := ev.Entity.(Item)
	if !ok {
		return nil
	}
	contents, applicable, err := ev.Resolver.ItemContents(ctx, item, QueryOptions{Limit: 1})
	if err != nil {
		return err
	}
	if !applicable || len(contents) == 0 {
		return nil
	}
	if item.ItemType == nil || !item.ItemType.CanContainItems() {
		typeName := string(domain.Deref(item.ItemType))
		if typeName == "" {
			typeName = "item"
		}
		ev.Report("item_type", fmt.Sprintf("This item already contains items, cannot set item type to %s", typeName))
	}
	return nil
}
