// Package sqlstore implements core.Store on top of database/sql.
//
// Every table is stored as (seq, id, parent_id, fields) where fields is the
// JSON encoding of core.Fields. seq preserves insertion order across upserts.
// Engine differences (placeholders, DDL, row locking) live in a Dialect so
// the sqlite and postgres adapters share this implementation.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/aretw0/loft/pkg/core"
)

// Dialect captures the SQL differences between engines.
type Dialect struct {
	// Name identifies the engine (e.g. "sqlite", "postgres").
	Name string

	// Numbered selects "$1" placeholders instead of "?".
	Numbered bool

	// FieldsType is the column type used for the JSON fields column.
	FieldsType string

	// SeqColumn is the full definition of the ordering column.
	SeqColumn string

	// LockForUpdate appends FOR UPDATE to the read of a field update.
	LockForUpdate bool

	// FieldsCast is appended to the fields placeholder on writes (e.g. "::jsonb").
	FieldsCast string
}

// Store is a database/sql backed core.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect

	mu     sync.RWMutex
	tables map[string]struct{}
}

// New wraps an open database handle. The caller keeps ownership of the
// driver configuration; Close closes db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		tables:  make(map[string]struct{}),
	}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the engine dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Tables returns the names of the initialized tables.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	return out
}

func (s *Store) ph(n int) string {
	if s.dialect.Numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Initialize creates a table and its parent index for every schema.
func (s *Store) Initialize(ctx context.Context, schemas ...core.Schema) error {
	for _, sc := range schemas {
		if !core.ValidTableName(sc.Table) {
			return fmt.Errorf("invalid table name %q", sc.Table)
		}
		ddl := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	id TEXT NOT NULL UNIQUE,
	parent_id TEXT NOT NULL DEFAULT '',
	fields %s NOT NULL
)`, sc.Table, s.dialect.SeqColumn, s.dialect.FieldsType),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s (parent_id)`, sc.Table, sc.Table),
		}
		for _, stmt := range ddl {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create table %s: %w", sc.Table, err)
			}
		}
		s.mu.Lock()
		s.tables[sc.Table] = struct{}{}
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) checkTable(table string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("table %q not initialized", table)
	}
	return nil
}

// All returns every record of a table ordered by insertion.
func (s *Store) All(ctx context.Context, table string) ([]core.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, parent_id, fields FROM %s ORDER BY seq`, table)
	return s.query(ctx, q)
}

// ByParent returns the children of parentID ordered by insertion.
func (s *Store) ByParent(ctx context.Context, table, parentID string) ([]core.Record, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, parent_id, fields FROM %s WHERE parent_id = %s ORDER BY seq`, table, s.ph(1))
	return s.query(ctx, q, parentID)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (core.Record, error) {
	var (
		rec    core.Record
		fields []byte
	)
	if err := row.Scan(&rec.ID, &rec.ParentID, &fields); err != nil {
		return core.Record{}, fmt.Errorf("scan: %w", err)
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return core.Record{}, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Get retrieves a record by its ID.
func (s *Store) Get(ctx context.Context, table, id string) (core.Record, bool, error) {
	if err := s.checkTable(table); err != nil {
		return core.Record{}, false, err
	}
	q := fmt.Sprintf(`SELECT id, parent_id, fields FROM %s WHERE id = %s`, table, s.ph(1))
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, false, nil
	}
	if err != nil {
		return core.Record{}, false, err
	}
	return rec, true, nil
}

// Upsert inserts rec or replaces the stored record with the same ID,
// keeping its seq.
func (s *Store) Upsert(ctx context.Context, table string, rec core.Record) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, parent_id, fields) VALUES (%s, %s, %s%s)
ON CONFLICT (id) DO UPDATE SET parent_id = excluded.parent_id, fields = excluded.fields`,
		table, s.ph(1), s.ph(2), s.ph(3), s.dialect.FieldsCast)
	if _, err := s.db.ExecContext(ctx, q, rec.ID, rec.ParentID, fields); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// UpdateField reads, patches and writes back the fields of one record in a
// single transaction.
func (s *Store) UpdateField(ctx context.Context, table, id, field string, value any) (retErr error) {
	if err := s.checkTable(table); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	sel := fmt.Sprintf(`SELECT id, parent_id, fields FROM %s WHERE id = %s`, table, s.ph(1))
	if s.dialect.LockForUpdate {
		sel += " FOR UPDATE"
	}
	rec, err := scanRecord(tx.QueryRowContext(ctx, sel, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	if rec.Fields == nil {
		rec.Fields = core.Fields{}
	}
	rec.Fields[field] = value

	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}
	upd := fmt.Sprintf(`UPDATE %s SET fields = %s%s WHERE id = %s`, table, s.ph(1), s.dialect.FieldsCast, s.ph(2))
	if _, err := tx.ExecContext(ctx, upd, fields, id); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, table, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Exists reports whether id is stored.
func (s *Store) Exists(ctx context.Context, table, id string) (bool, error) {
	if err := s.checkTable(table); err != nil {
		return false, err
	}
	q := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE id = %s`, table, s.ph(1))
	var n int64
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return n > 0, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeFields(f core.Fields) (string, error) {
	if f == nil {
		f = core.Fields{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

var _ core.Store = (*Store)(nil)
