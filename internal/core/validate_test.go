package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"inventorycore/pkg/domain"
)

func TestCollectionReferenceWidth(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0000000", "100")

	_, issues, err := svc.Validate(ctx, Collection{Name: "Tools", CollectionReferenceNumber: domain.Ptr("12345")})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "collection_reference_number", issues[0].Field())
	require.Equal(t, "Should have 4 digits", issues[0].Message)

	_, issues, err = svc.Validate(ctx, Collection{Name: "Tools", CollectionReferenceNumber: domain.Ptr("12")})
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestCollectionReferenceUniqueness(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	tools := saveCollection(t, svc, "Tools", "1")

	_, err := svc.Save(ctx, Collection{Name: "Parts", CollectionReferenceNumber: domain.Ptr("0001")})
	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, `Must be unique (reference number 0001 is already taken by collection "Tools")`, issues[0].Message)

	// Re-saving the owner of the reference is fine.
	tools.Name = "Hand tools"
	saveAs[Collection](t, svc, tools)
}

func TestSaveRequiresNames(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")

	_, err := svc.Save(ctx, Collection{Name: "   "})
	require.Equal(t, []string{"name"}, issueFields(validationIssues(t, err)))

	_, err = svc.Save(ctx, Item{Name: "Orphan"})
	require.Equal(t, []string{"collection_id"}, issueFields(validationIssues(t, err)))

	coll := saveCollection(t, svc, "Tools", "")
	bad := newItem("Odd", coll)
	bad.ItemType = domain.Ptr(ItemType("vehicle"))
	_, err = svc.Save(ctx, bad)
	require.Equal(t, []string{"item_type"}, issueFields(validationIssues(t, err)))
}

func TestItemCollectionMustExist(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")

	_, err := svc.Save(ctx, Item{Name: "Drill", CollectionID: domain.Ptr("missing")})
	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "collection_id", issues[0].Field())
	require.Equal(t, `Can't find collection with ID "missing"`, issues[0].Message)
}

func TestItemContainerRules(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "")
	plain := saveAs[Item](t, svc, newItem("Hammer", coll))

	child := newItem("Nail", coll)
	child.ContainerID = domain.Ptr(plain.ID)
	_, err := svc.Save(ctx, child)
	issue, ok := findIssue(validationIssues(t, err), "container_id")
	require.True(t, ok)
	require.Equal(t, fmt.Sprintf("Item with ID %q can not be a container", plain.ID), issue.Message)

	child.ContainerID = domain.Ptr("nowhere")
	_, err = svc.Save(ctx, child)
	issue, ok = findIssue(validationIssues(t, err), "container_id")
	require.True(t, ok)
	require.Equal(t, `Can't find item with ID "nowhere"`, issue.Message)

	box := saveAs[Item](t, svc, Item{Name: "Box", CollectionID: domain.Ptr(coll.ID), ItemType: domain.Ptr(domain.ItemTypeContainer)})
	box.ContainerID = domain.Ptr(box.ID)
	_, err = svc.Save(ctx, box)
	issue, ok = findIssue(validationIssues(t, err), "container_id")
	require.True(t, ok)
	require.Equal(t, "An item can not contain itself", issue.Message)
}

func TestItemTypeWithContents(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "")
	box := saveAs[Item](t, svc, Item{Name: "Box", CollectionID: domain.Ptr(coll.ID), ItemType: domain.Ptr(domain.ItemTypeContainer)})
	child := newItem("Nail", coll)
	child.ContainerID = domain.Ptr(box.ID)
	saveAs[Item](t, svc, child)

	box.ItemType = domain.Ptr(domain.ItemTypeConsumable)
	_, err := svc.Save(ctx, box)
	issue, ok := findIssue(validationIssues(t, err), "item_type")
	require.True(t, ok)
	require.Equal(t, "This item already contains items, cannot set item type to consumable", issue.Message)

	box.ItemType = nil
	_, err = svc.Save(ctx, box)
	issue, ok = findIssue(validationIssues(t, err), "item_type")
	require.True(t, ok)
	require.Equal(t, "This item already contains items, cannot set item type to item", issue.Message)

	box.ItemType = domain.Ptr(domain.ItemTypeItemWithParts)
	saveAs[Item](t, svc, box)
}

func TestIndividualAssetReferenceUniqueness(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "1")
	require.Equal(t, "0001", domain.Deref(coll.CollectionReferenceNumber))

	first := newItem("Drill", coll)
	first.ItemReferenceNumber = domain.Ptr("1")
	drill := saveAs[Item](t, svc, first)
	require.Equal(t, "80001000000010000", domain.Deref(drill.IndividualAssetReference))

	second := newItem("Saw", coll)
	second.ItemReferenceNumber = domain.Ptr("1")
	_, err := svc.Save(ctx, second)
	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "item_reference_number", issues[0].Field())
	require.Equal(t, fmt.Sprintf(
		`Individual Asset Reference should be unique, but "80001000000010000" is already used by item "Drill" (ID: %s)`, drill.ID),
		issues[0].Message)

	// A different serial makes the reference unique again.
	second.Serial = domain.Ptr(1)
	saw := saveAs[Item](t, svc, second)
	require.Equal(t, "80001000000010001", domain.Deref(saw.IndividualAssetReference))

	// Updating the owner itself does not conflict with its own reference.
	drill.Name = "Cordless drill"
	saveAs[Item](t, svc, drill)
}

func TestItemReferenceEncodingIssue(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "1")

	item := newItem("Drill", coll)
	item.ItemReferenceNumber = domain.Ptr("123456789")
	_, err := svc.Save(ctx, item)
	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "item_reference_number", issues[0].Field())
	require.Equal(t, `Item reference number "123456789" should have at most 8 digits`, issues[0].Message)
}

func TestEPCTagURIMustEncode(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "")

	item := newItem("Drill", coll)
	item.EPCManuallySet = domain.Ptr(true)
	item.EPCTagURI = domain.Ptr("urn:epc:tag:sgtin-96:0.0614141.1")
	_, err := svc.Save(ctx, item)
	issue, ok := findIssue(validationIssues(t, err), "epc_tag_uri")
	require.True(t, ok)
	require.Contains(t, issue.Message, "is not a GIAI-96 tag URI")
}

func TestEPCMemoryBankUniqueness(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "1")

	first := newItem("Drill", coll)
	first.ItemReferenceNumber = domain.Ptr("1")
	drill := saveAs[Item](t, svc, first)
	hex := domain.Deref(drill.RFIDTagEPCMemoryBankContents)
	require.Equal(t, "3414257BF51C387C52AD3710", hex)

	clash := newItem("Saw", coll)
	clash.ItemReferenceNumber = domain.Ptr("2")
	clash.RFIDTagEPCMemoryBankContentsManuallySet = domain.Ptr(true)
	clash.RFIDTagEPCMemoryBankContents = domain.Ptr(hex)
	_, err := svc.Save(ctx, clash)
	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "rfid_tag_epc_memory_bank_contents", issues[0].Field())
	require.Equal(t, fmt.Sprintf(
		`RFID tag EPC memory bank contents should be unique, but %q is already used by item "Drill" (ID: %s)`, hex, drill.ID),
		issues[0].Message)

	scanned := newItem("Ladder", coll)
	scanned.ActualRFIDTagEPCMemoryBankContents = domain.Ptr("E2801160600002084A6B1E2C")
	ladder := saveAs[Item](t, svc, scanned)

	copycat := newItem("Bucket", coll)
	copycat.RFIDTagEPCMemoryBankContentsManuallySet = domain.Ptr(true)
	copycat.RFIDTagEPCMemoryBankContents = domain.Ptr("E2801160600002084A6B1E2C")
	_, err = svc.Save(ctx, copycat)
	issues = validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, fmt.Sprintf(
		`RFID tag EPC memory bank contents should be unique, but "E2801160600002084A6B1E2C" is already used by item "Ladder" (ID: %s) as the actual RFID EPC memory bank contents`, ladder.ID),
		issues[0].Message)
}

func TestSharedWriteGate(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	cfg := configure(t, svc, "0614141", "8")

	theirs, err := svc.Store().SaveDatum(ctx, Collection{Name: "Theirs", ConfigUUID: domain.Ptr("other-db")})
	require.NoError(t, err)
	borrowed, err := svc.Store().SaveDatum(ctx, Item{
		Name:         "Borrowed",
		CollectionID: domain.Ptr(theirs.Metadata().ID),
		ConfigUUID:   domain.Ptr("other-db"),
	})
	require.NoError(t, err)

	item := borrowed.(Item)
	item.Name = ""
	item.ItemType = domain.Ptr(ItemType("vehicle"))
	_, err = svc.Save(ctx, item)
	issues := validationIssues(t, err)
	require.Len(t, issues, 1, "the gate must short-circuit every other rule")
	require.Empty(t, issues[0].Path)
	require.Equal(t, "You are not allowed to change this shared object.", issues[0].Message)

	delIssues, err := svc.Validator().ValidateDelete(ctx, EntityItem, item.ID)
	require.NoError(t, err)
	require.Len(t, delIssues, 1)
	require.Equal(t, "You are not allowed to delete this shared object.", delIssues[0].Message)

	saveAs[DBSharing](t, svc, DBSharing{
		Meta:        Meta{ID: domain.DBSharingID("other-db", cfg.UUID)},
		Permissions: []string{domain.PermissionWrite},
	})
	item = borrowed.(Item)
	item.Name = "Borrowed drill"
	updated := saveAs[Item](t, svc, item)
	require.Equal(t, "other-db", domain.Deref(updated.ConfigUUID))
}

func TestSharedReadOnlyPermissionStillBlocks(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	cfg := configure(t, svc, "0614141", "8")
	saveAs[DBSharing](t, svc, DBSharing{
		Meta:        Meta{ID: domain.DBSharingID("other-db", cfg.UUID)},
		Permissions: []string{"read"},
	})

	_, err := svc.Save(ctx, Collection{Name: "Theirs", ConfigUUID: domain.Ptr("other-db")})
	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, "You are not allowed to change this shared object.", issues[0].Message)
}

func TestValidateQuarantinedRecord(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")

	broken := Item{}.WithMetadata(Meta{
		ID:      "i1",
		Invalid: true,
		Raw:     map[string]any{"name": "x", "serial": "seven"},
		Errors:  []string{"serial: expected int, got string", "json: cannot unmarshal"},
	})
	issues, err := svc.Validator().Validate(ctx, broken)
	require.NoError(t, err)
	require.Equal(t, []string{"serial", ""}, issueFields(issues))
	require.Equal(t, "expected int, got string", issues[0].Message)
}

func TestValidateDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	configure(t, svc, "0614141", "8")
	coll := saveCollection(t, svc, "Tools", "")
	box := saveAs[Item](t, svc, Item{Name: "Box", CollectionID: domain.Ptr(coll.ID), ItemType: domain.Ptr(domain.ItemTypeContainer)})
	child := newItem("Nail", coll)
	child.ContainerID = domain.Ptr(box.ID)
	nail := saveAs[Item](t, svc, child)

	issues, err := svc.Validator().ValidateDelete(ctx, EntityCollection, coll.ID)
	require.NoError(t, err)
	require.Equal(t, []Issue{domain.NewIssue("", "Cannot delete a collection that contain items.")}, issues)

	issues, err = svc.Validator().ValidateDelete(ctx, EntityItem, box.ID)
	require.NoError(t, err)
	require.Equal(t, []Issue{domain.NewIssue("", "Cannot delete a item that contain items.")}, issues)

	issues, err = svc.Validator().ValidateDelete(ctx, EntityItem, nail.ID)
	require.NoError(t, err)
	require.Empty(t, issues)

	issues, err = svc.Validator().ValidateDelete(ctx, EntityConfig, domain.ConfigID)
	require.NoError(t, err)
	require.Equal(t, []Issue{domain.NewIssue("", "The configuration cannot be deleted.")}, issues)

	issues, err = svc.Validator().ValidateDelete(ctx, EntityItem, "ghost")
	require.NoError(t, err)
	require.Equal(t, []Issue{domain.NewIssue("", `Can't find item with ID "ghost"`)}, issues)
}

func TestGetValidationResultMessage(t *testing.T) {
	issues := []Issue{
		domain.NewIssue("collection_reference_number", "Should have 4 digits"),
		domain.NewIssue("", "Cannot delete a collection that contain items."),
	}
	require.Equal(t,
		"Collection Reference Number: should have 4 digits, cannot delete a collection that contain items.",
		GetValidationResultMessage(issues, MessageOptions{}))
	require.Equal(t,
		"- Collection Reference Number: should have 4 digits\n- cannot delete a collection that contain items.",
		GetValidationResultMessage(issues, MessageOptions{Bullet: "-", JoinWith: "\n"}))
	require.Equal(t, "", GetValidationResultMessage(nil, MessageOptions{}))
}

type haltingRule struct{ calls *int }

func (haltingRule) Name() string { return "halting" }

func (r haltingRule) Evaluate(_ context.Context, ev *Evaluation) error {
	*r.calls++
	ev.Report("", "stop")
	ev.Halt()
	return nil
}

func TestRulesEngineStopsWhenHalted(t *testing.T) {
	calls := 0
	engine := NewRulesEngine()
	engine.Register(haltingRule{calls: &calls})
	engine.Register(haltingRule{calls: &calls})
	require.Len(t, engine.Rules(), 2)

	issues, err := engine.Evaluate(context.Background(), &Evaluation{Entity: Collection{Name: "x"}})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 1, calls)
}

func TestDefaultRulesOrder(t *testing.T) {
	var names []string
	for _, rule := range NewDefaultRulesEngine().Rules() {
		names = append(names, rule.Name())
	}
	require.Equal(t, []string{
		"shared_write",
		"record_shape",
		"collection_reference",
		"item_collection",
		"item_container",
		"item_type_contents",
		"iar_uniqueness",
		"iar_encoding",
		"epc_tag_uri",
		"epc_memory_bank_uniqueness",
	}, names)
}
