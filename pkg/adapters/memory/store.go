// Package memory provides an in-memory core.Store.
//
// It keeps every table in a map for point lookups plus a slice that records
// insertion order, so All and ByParent return records in storage order.
// Nothing survives the process; it backs tests and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/loft/pkg/core"
)

type table struct {
	rows  map[string]core.Record
	order []string
}

// Store is an in-memory implementation of core.Store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

// Initialize creates the given tables. Existing tables are kept.
func (s *Store) Initialize(_ context.Context, schemas ...core.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range schemas {
		if _, ok := s.tables[sc.Table]; !ok {
			s.tables[sc.Table] = &table{rows: make(map[string]core.Record)}
		}
	}
	return nil
}

func (s *Store) table(name string) (*table, error) {
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q not initialized", name)
	}
	return t, nil
}

// All returns every record of a table in insertion order.
func (s *Store) All(_ context.Context, name string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	out := make([]core.Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id].Clone())
	}
	return out, nil
}

// Get retrieves a record by its ID.
func (s *Store) Get(_ context.Context, name, id string) (core.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return core.Record{}, false, err
	}
	rec, ok := t.rows[id]
	if !ok {
		return core.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// ByParent returns the children of parentID in insertion order.
func (s *Store) ByParent(_ context.Context, name, parentID string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	out := []core.Record{}
	for _, id := range t.order {
		if rec := t.rows[id]; rec.ParentID == parentID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Upsert stores rec, replacing an existing record in place.
func (s *Store) Upsert(_ context.Context, name string, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return err
	}
	if _, ok := t.rows[rec.ID]; !ok {
		t.order = append(t.order, rec.ID)
	}
	t.rows[rec.ID] = rec.Clone()
	return nil
}

// UpdateField sets one field of an existing record.
func (s *Store) UpdateField(_ context.Context, name, id, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return err
	}
	rec, ok := t.rows[id]
	if !ok {
		return core.ErrNotFound
	}
	rec = rec.Clone()
	if rec.Fields == nil {
		rec.Fields = core.Fields{}
	}
	rec.Fields[field] = core.CloneValue(value)
	t.rows[id] = rec
	return nil
}

// Delete removes a record; absent records are ignored.
func (s *Store) Delete(_ context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return err
	}
	if _, ok := t.rows[id]; !ok {
		return nil
	}
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Exists reports whether id is stored.
func (s *Store) Exists(_ context.Context, name, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return false, err
	}
	_, ok := t.rows[id]
	return ok, nil
}

// Close marks the store closed; later calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Tables map[string]int `json:"tables"`
	Closed bool           `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.tables))
	for name, t := range s.tables {
		counts[name] = len(t.order)
	}
	return StoreState{Tables: counts, Closed: s.closed}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory"
}

var _ core.Store = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
