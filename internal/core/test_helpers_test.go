package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"inventorycore/pkg/domain"
)

// configure saves a configuration with the given prefixes.
func configure(t *testing.T, svc *Service, companyPrefix, iarPrefix string) Config {
	t.Helper()
	cfg, err := svc.UpdateConfig(context.Background(), ConfigPatch{
		RFIDTagCompanyPrefix:                  &companyPrefix,
		RFIDTagIndividualAssetReferencePrefix: &iarPrefix,
	})
	require.NoError(t, err)
	return cfg
}

func saveAs[T Entity](t *testing.T, svc *Service, e Entity) T {
	t.Helper()
	saved, err := svc.Save(context.Background(), e)
	require.NoError(t, err)
	typed, ok := saved.(T)
	require.True(t, ok, "unexpected saved type %T", saved)
	return typed
}

func saveCollection(t *testing.T, svc *Service, name, ref string) Collection {
	t.Helper()
	c := Collection{Name: name}
	if ref != "" {
		c.CollectionReferenceNumber = domain.Ptr(ref)
	}
	return saveAs[Collection](t, svc, c)
}

func newItem(name string, coll Collection) Item {
	return Item{Name: name, CollectionID: domain.Ptr(coll.ID)}
}

func validationIssues(t *testing.T, err error) []Issue {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return verr.Issues
}

func issueFields(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Field()
	}
	return out
}

func findIssue(issues []Issue, field string) (Issue, bool) {
	for _, issue := range issues {
		if issue.Field() == field {
			return issue, true
		}
	}
	return Issue{}, false
}
