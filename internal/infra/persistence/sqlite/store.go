// Package sqlite provides a SQLite-backed document store that keeps the
// working set in memory and writes each committed document through to disk.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/pkg/domain"
)

var _ domain.DataStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "inventory.db"

// Store persists documents to a single SQLite table as JSON payloads.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and hydrates the working set.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		type TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (type, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT seq, payload FROM documents ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var rec memory.Record
		var payload []byte
		if err := rows.Scan(&rec.Seq, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Document); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}
		snapshot.Records = append(snapshot.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate documents: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context, rec memory.Record) error {
	payload, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(type,id,seq,payload) VALUES(?,?,?,?)
		ON CONFLICT(type,id) DO UPDATE SET seq=excluded.seq, payload=excluded.payload`,
		string(rec.Document.Type), rec.Document.ID, rec.Seq, payload); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", rec.Document.Type, rec.Document.ID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
