// Package postgres provides a Postgres-backed document store that mirrors the
// in-memory semantics and writes each committed document to a JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DataStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/inventory?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const ensureTableDDL = `CREATE TABLE IF NOT EXISTS documents (
	type TEXT NOT NULL,
	id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	payload JSONB NOT NULL,
	PRIMARY KEY (type, id)
)`

const selectDocuments = `SELECT seq, payload FROM documents ORDER BY seq`

const upsertDocument = `INSERT INTO documents(type,id,seq,payload) VALUES($1,$2,$3,$4)
ON CONFLICT(type,id) DO UPDATE SET seq=EXCLUDED.seq, payload=EXCLUDED.payload`

// Store persists documents to Postgres while reusing the in-memory implementation for reads.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the documents table exists and hydrates the in-memory working set.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, ensureTableDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	s := &Store{Store: mem, db: db}
	mem.SetCommitHook(s.persist)
	return s, nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, selectDocuments)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var rec memory.Record
		var payload []byte
		if err := rows.Scan(&rec.Seq, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan document: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, &rec.Document); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode document: %w", err)
		}
		snapshot.Records = append(snapshot.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate documents: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context, rec memory.Record) error {
	payload, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertDocument, string(rec.Document.Type), rec.Document.ID, int64(rec.Seq), payload); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", rec.Document.Type, rec.Document.ID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
