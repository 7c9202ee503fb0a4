package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"inventorycore/internal/blob"
	blobmemory "inventorycore/internal/infra/blob/memory"
	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/pkg/domain"
)

func newService(t *testing.T) (*Service, domain.Item) {
	t.Helper()
	store := memory.NewStore()
	saved, err := store.SaveDatum(context.Background(), domain.Item{Name: "Drill"})
	require.NoError(t, err)
	return New(store, blobmemory.New(), nil), saved.(domain.Item)
}

func TestAttachAndRead(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()

	att, err := svc.Attach(ctx, domain.EntityItem, item.ID, "manual.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "manual.pdf", att.Name)
	require.Equal(t, int64(4), att.Size)
	require.NotEmpty(t, att.Digest)

	info, err := svc.Info(ctx, domain.EntityItem, item.ID, "manual.pdf")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", info.ContentType)
	require.Equal(t, att.Digest, info.Digest)

	got, rc, err := svc.Get(ctx, domain.EntityItem, item.ID, "manual.pdf")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(body))
	require.Equal(t, "manual.pdf", got.Name)
}

func TestAttachReplacesExisting(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()

	first, err := svc.Attach(ctx, domain.EntityItem, item.ID, "photo.jpg", "image/jpeg", strings.NewReader("v1"))
	require.NoError(t, err)
	second, err := svc.Attach(ctx, domain.EntityItem, item.ID, "photo.jpg", "image/jpeg", strings.NewReader("version 2"))
	require.NoError(t, err)
	require.NotEqual(t, first.Digest, second.Digest)
	require.Equal(t, int64(9), second.Size)

	list, err := svc.ListInfo(ctx, domain.EntityItem, item.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListInfoScopedToRecord(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()
	other, err := svc.records.(*memory.Store).SaveDatum(ctx, domain.Item{Name: "Saw"})
	require.NoError(t, err)

	for _, name := range []string{"b.txt", "a.txt"} {
		_, err := svc.Attach(ctx, domain.EntityItem, item.ID, name, "text/plain", strings.NewReader(name))
		require.NoError(t, err)
	}
	_, err = svc.Attach(ctx, domain.EntityItem, other.Metadata().ID, "c.txt", "text/plain", strings.NewReader("c"))
	require.NoError(t, err)

	list, err := svc.ListInfo(ctx, domain.EntityItem, item.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a.txt", list[0].Name)
	require.Equal(t, "b.txt", list[1].Name)

	empty, err := svc.ListInfo(ctx, domain.EntityCollection, item.ID)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAttachRequiresLiveRecord(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Attach(context.Background(), domain.EntityItem, "missing", "a.txt", "", strings.NewReader("a"))
	var notFound *domain.NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "missing", notFound.ID)
}

func TestMissingAttachment(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()

	_, err := svc.Info(ctx, domain.EntityItem, item.ID, "nope.txt")
	require.True(t, errors.Is(err, ErrNotFound))
	_, _, err = svc.Get(ctx, domain.EntityItem, item.ID, "nope.txt")
	require.True(t, errors.Is(err, ErrNotFound))

	removed, err := svc.Remove(ctx, domain.EntityItem, item.ID, "nope.txt")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestRemove(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()
	_, err := svc.Attach(ctx, domain.EntityItem, item.ID, "a.txt", "", strings.NewReader("a"))
	require.NoError(t, err)

	removed, err := svc.Remove(ctx, domain.EntityItem, item.ID, "a.txt")
	require.NoError(t, err)
	require.True(t, removed)
	_, err = svc.Info(ctx, domain.EntityItem, item.ID, "a.txt")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestAttachmentNames(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()
	for _, name := range []string{"", " ", ".", "..", "a/b", `a\b`} {
		_, err := svc.Attach(ctx, domain.EntityItem, item.ID, name, "", strings.NewReader("x"))
		require.Error(t, err, "name %q", name)
	}
	require.Equal(t, "item/i1/photo.jpg", Key(domain.EntityItem, "i1", "photo.jpg"))
}

type brokenRecords struct{}

func (brokenRecords) GetDatum(context.Context, domain.EntityType, string) (domain.Entity, error) {
	return nil, errors.New("unavailable")
}

func TestAttachStorageFailure(t *testing.T) {
	svc := New(brokenRecords{}, blobmemory.New(), nil)
	_, err := svc.Attach(context.Background(), domain.EntityItem, "i1", "a.txt", "", strings.NewReader("a"))
	var storageErr *domain.StorageError
	require.True(t, errors.As(err, &storageErr))
	require.Equal(t, "get_item", storageErr.Op)
}

func readAttachment(t *testing.T, svc *Service, item domain.Item, name string) string {
	t.Helper()
	_, rc, err := svc.Get(context.Background(), domain.EntityItem, item.ID, name)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(body)
}

func TestAttachKeepsPreviousOnReadError(t *testing.T) {
	svc, item := newService(t)
	ctx := context.Background()
	first, err := svc.Attach(ctx, domain.EntityItem, item.ID, "photo.jpg", "image/jpeg", strings.NewReader("v1"))
	require.NoError(t, err)

	_, err = svc.Attach(ctx, domain.EntityItem, item.ID, "photo.jpg", "image/jpeg", iotest.ErrReader(errors.New("upload interrupted")))
	require.ErrorContains(t, err, "upload interrupted")

	info, err := svc.Info(ctx, domain.EntityItem, item.ID, "photo.jpg")
	require.NoError(t, err)
	require.Equal(t, first.Digest, info.Digest)
	require.Equal(t, "v1", readAttachment(t, svc, item, "photo.jpg"))
}

// flakyBlobs fails Put for bodies matching reject once the key is free, so
// the failure lands after the previous blob was deleted.
type flakyBlobs struct {
	blob.Store
	reject string
}

func (f *flakyBlobs) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return blob.Info{}, err
	}
	if string(body) == f.reject {
		if _, err := f.Store.Head(ctx, key); errors.Is(err, blob.ErrNotFound) {
			return blob.Info{}, errors.New("backend unavailable")
		}
	}
	return f.Store.Put(ctx, key, bytes.NewReader(body), opts)
}

func TestAttachRestoresPreviousOnStoreError(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	saved, err := store.SaveDatum(ctx, domain.Item{Name: "Drill"})
	require.NoError(t, err)
	item := saved.(domain.Item)
	svc := New(store, &flakyBlobs{Store: blobmemory.New(), reject: "version 2"}, nil)

	_, err = svc.Attach(ctx, domain.EntityItem, item.ID, "photo.jpg", "image/jpeg", strings.NewReader("v1"))
	require.NoError(t, err)
	_, err = svc.Attach(ctx, domain.EntityItem, item.ID, "photo.jpg", "image/png", strings.NewReader("version 2"))
	require.ErrorContains(t, err, "backend unavailable")

	info, err := svc.Info(ctx, domain.EntityItem, item.ID, "photo.jpg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", info.ContentType)
	require.Equal(t, "v1", readAttachment(t, svc, item, "photo.jpg"))
}
