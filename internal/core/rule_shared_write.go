package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewSharedWriteRule blocks changes to records owned by another database
// unless a sharing record grants write permission. It halts evaluation.
func NewSharedWriteRule() Rule {
	return sharedWriteRule{verb: "change"}
}

type sharedWriteRule struct {
	verb string
}

func (sharedWriteRule) Name() string { return "shared_write" }

func (r sharedWriteRule) Evaluate(ctx context.Context, ev *Evaluation) error {
	if !ev.Shared {
		return nil
	}
	allowed, err := canWriteShared(ctx, ev.Store, *ev.Entity.Owner(), ev.Config.UUID)
	if err != nil {
		return err
	}
	if !allowed {
		ev.Report("", fmt.Sprintf("You are not allowed to %s this shared object.", r.verb))
		ev.Halt()
	}
	return nil
}

func canWriteShared(ctx context.Context, store DataStore, owner, local string) (bool, error) {
	e, err := store.GetDatum(ctx, EntityDBSharing, domain.DBSharingID(owner, local))
	if err != nil {
		return false, asStorageError("get db sharing", err)
	}
	sharing, ok := e.(DBSharing)
	return ok && sharing.Allows(domain.PermissionWrite), nil
}
