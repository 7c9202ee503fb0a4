// Package attachments stores files against inventory records. Blobs are
// kept under `<type>/<id>/<name>` in the configured blob store and are not
// revisioned with the record they belong to.
package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"inventorycore/internal/blob"
	"inventorycore/internal/logging"
	"inventorycore/pkg/domain"
)

// ErrNotFound is returned when the named attachment does not exist.
var ErrNotFound = blob.ErrNotFound

// Records looks up the record an attachment belongs to.
type Records interface {
	GetDatum(ctx context.Context, t domain.EntityType, id string) (domain.Entity, error)
}

// Attachment describes a stored file.
type Attachment struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service attaches files to records.
type Service struct {
	records Records
	blobs   blob.Store
	logger  *zap.Logger
}

// New returns a service writing to blobs. A nil logger disables logging.
func New(records Records, blobs blob.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: records, blobs: blobs, logger: logging.Module(logger, "data/attachments")}
}

// Key returns the blob key for an attachment.
func Key(t domain.EntityType, id, name string) string {
	return string(t) + "/" + id + "/" + name
}

func prefix(t domain.EntityType, id string) string {
	return string(t) + "/" + id + "/"
}

// Attach stores r as name on the live record t/id, replacing any previous
// attachment with the same name. The body is read in full before the store
// is touched, and a replaced attachment is restored when the new write fails.
func (s *Service) Attach(ctx context.Context, t domain.EntityType, id, name, contentType string, r io.Reader) (Attachment, error) {
	if err := checkName(name); err != nil {
		return Attachment{}, err
	}
	if err := s.requireRecord(ctx, t, id); err != nil {
		return Attachment{}, err
	}
	key := Key(t, id, name)
	body, err := io.ReadAll(r)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment %s: %w", key, err)
	}
	opts := blob.PutOptions{ContentType: contentType}
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(body), opts)
	replaced := false
	if errors.Is(err, blob.ErrExists) {
		replaced = true
		info, err = s.replace(ctx, key, body, opts)
	}
	if err != nil {
		return Attachment{}, err
	}
	s.logger.Debug("attachment stored",
		zap.String("key", key),
		zap.Int64("size", info.Size),
		zap.Bool("replaced", replaced))
	return fromInfo(name, info), nil
}

func (s *Service) replace(ctx context.Context, key string, body []byte, opts blob.PutOptions) (blob.Info, error) {
	prevInfo, rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return blob.Info{}, fmt.Errorf("replace attachment %s: %w", key, err)
	}
	prev, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return blob.Info{}, fmt.Errorf("replace attachment %s: %w", key, err)
	}
	if _, err := s.blobs.Delete(ctx, key); err != nil {
		return blob.Info{}, fmt.Errorf("replace attachment %s: %w", key, err)
	}
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(body), opts)
	if err == nil {
		return info, nil
	}
	storeErr := fmt.Errorf("store attachment %s: %w", key, err)
	restore := blob.PutOptions{ContentType: prevInfo.ContentType, Metadata: prevInfo.Metadata}
	if _, rerr := s.blobs.Put(ctx, key, bytes.NewReader(prev), restore); rerr != nil {
		s.logger.Error("attachment restore failed", zap.String("key", key), zap.Error(rerr))
		return blob.Info{}, errors.Join(storeErr, fmt.Errorf("restore attachment %s: %w", key, rerr))
	}
	return blob.Info{}, storeErr
}

// Info returns the description of one attachment.
func (s *Service) Info(ctx context.Context, t domain.EntityType, id, name string) (Attachment, error) {
	if err := checkName(name); err != nil {
		return Attachment{}, err
	}
	info, err := s.blobs.Head(ctx, Key(t, id, name))
	if err != nil {
		return Attachment{}, err
	}
	return fromInfo(name, info), nil
}

// Get opens an attachment. The caller closes the reader.
func (s *Service) Get(ctx context.Context, t domain.EntityType, id, name string) (Attachment, io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return Attachment{}, nil, err
	}
	info, rc, err := s.blobs.Get(ctx, Key(t, id, name))
	if err != nil {
		return Attachment{}, nil, err
	}
	return fromInfo(name, info), rc, nil
}

// ListInfo describes every attachment of t/id ordered by name.
func (s *Service) ListInfo(ctx context.Context, t domain.EntityType, id string) ([]Attachment, error) {
	p := prefix(t, id)
	infos, err := s.blobs.List(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, p)
		if strings.Contains(name, "/") {
			continue
		}
		out = append(out, fromInfo(name, info))
	}
	return out, nil
}

// Remove deletes an attachment and reports whether it existed.
func (s *Service) Remove(ctx context.Context, t domain.EntityType, id, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	return s.blobs.Delete(ctx, Key(t, id, name))
}

func (s *Service) requireRecord(ctx context.Context, t domain.EntityType, id string) error {
	e, err := s.records.GetDatum(ctx, t, id)
	if err != nil {
		return &domain.StorageError{Op: "get_" + string(t), Err: err}
	}
	if e == nil {
		return &domain.NotFoundError{Entity: t, ID: id}
	}
	return nil
}

func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("attachment name is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid attachment name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("attachment name %q may not contain a path separator", name)
	}
	return nil
}

func fromInfo(name string, info blob.Info) Attachment {
	return Attachment{
		Name:        name,
		ContentType: info.ContentType,
		Size:        info.Size,
		Digest:      info.ETag,
		UpdatedAt:   info.LastModified,
	}
}
