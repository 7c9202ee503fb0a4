package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"inventorycore/pkg/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.MonitorPingsOption(true),
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
	)
	require.NoError(t, err)
	restore := OverrideSQLOpen(func(driver, _ string) (*sql.DB, error) {
		require.Equal(t, defaultDriver, driver)
		return db, nil
	})
	t.Cleanup(restore)
	return db, mock
}

func seededPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.Document{
		Type:      domain.EntityCollection,
		ID:        "c1",
		Rev:       "1-aa",
		Valid:     true,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Data:      map[string]any{"name": "Seeded", "collection_reference_number": "0001"},
	})
	require.NoError(t, err)
	return payload
}

func TestNewStoreLoadsDocuments(t *testing.T) {
	_, mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectExec(ensureTableDDL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectDocuments).WillReturnRows(
		sqlmock.NewRows([]string{"seq", "payload"}).AddRow(int64(1), seededPayload(t)),
	)

	store, err := NewStore(context.Background(), "")
	require.NoError(t, err)

	got, err := store.GetDatum(context.Background(), domain.EntityCollection, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	coll := got.(domain.Collection)
	require.Equal(t, "Seeded", coll.Name)
	require.Equal(t, "1-aa", coll.Rev)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDatumUpsertsDocument(t *testing.T) {
	_, mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectExec(ensureTableDDL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectDocuments).WillReturnRows(
		sqlmock.NewRows([]string{"seq", "payload"}).AddRow(int64(1), seededPayload(t)),
	)

	store, err := NewStore(context.Background(), "postgres://example")
	require.NoError(t, err)

	mock.ExpectExec(upsertDocument).
		WithArgs("item", sqlmock.AnyArg(), int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	collID := "c1"
	saved, err := store.SaveDatum(context.Background(), domain.Item{Name: "Hammer", CollectionID: &collID})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Metadata().ID)

	mock.ExpectClose()
	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDatumFailureIsNotApplied(t *testing.T) {
	_, mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectExec(ensureTableDDL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectDocuments).WillReturnRows(sqlmock.NewRows([]string{"seq", "payload"}))

	store, err := NewStore(context.Background(), "")
	require.NoError(t, err)

	mock.ExpectExec(upsertDocument).WillReturnError(errors.New("connection reset"))

	_, err = store.SaveDatum(context.Background(), domain.Collection{Name: "Lost"})
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)

	n, err := store.GetDataCount(context.Background(), domain.EntityCollection, domain.Conditions{})
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStorePingFailure(t *testing.T) {
	_, mock := newMock(t)
	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	_, err := NewStore(context.Background(), "")
	require.ErrorContains(t, err, "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreRejectsCorruptPayload(t *testing.T) {
	_, mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectExec(ensureTableDDL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectDocuments).WillReturnRows(
		sqlmock.NewRows([]string{"seq", "payload"}).AddRow(int64(1), []byte("{not json")),
	)
	mock.ExpectClose()

	_, err := NewStore(context.Background(), "")
	require.ErrorContains(t, err, "decode document")
	require.NoError(t, mock.ExpectationsWereMet())
}
