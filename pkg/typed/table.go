// Package typed maps Go structs onto core records.
//
// Struct values are converted to and from core.Fields through their JSON
// tags, so a field named `json:"status"` is the record field "status".
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/loft/pkg/core"
)

// Backend is the record surface a Table works on. *core.Service satisfies it.
type Backend interface {
	core.Reader
	core.Writer
	core.Watchable
}

// Model wraps a record with typed fields.
type Model[T any] struct {
	ID       string
	ParentID string
	Data     T        // The typed fields
	Saver    Saver[T] // Active Record reference
}

// Saver avoids coupling models to a concrete Table.
type Saver[T any] interface {
	Save(ctx context.Context, m *Model[T]) error
}

// Save persists the model using the attached saver.
func (m *Model[T]) Save(ctx context.Context) error {
	if m.Saver == nil {
		return fmt.Errorf("model %s is detached (missing Saver)", m.ID)
	}
	return m.Saver.Save(ctx, m)
}

// Table gives type-safe access to one table of a Backend.
type Table[T any] struct {
	backend Backend
	name    string
}

// NewTable creates a typed view of table name.
func NewTable[T any](backend Backend, name string) *Table[T] {
	return &Table[T]{backend: backend, name: name}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Save inserts or replaces a model.
func (t *Table[T]) Save(ctx context.Context, m *Model[T]) error {
	fields, err := ToFields(m.Data)
	if err != nil {
		return err
	}
	if m.Saver == nil {
		m.Saver = t
	}
	return t.backend.Upsert(ctx, t.name, core.Record{ID: m.ID, ParentID: m.ParentID, Fields: fields})
}

// Get retrieves a model. ok is false when the record is absent.
func (t *Table[T]) Get(ctx context.Context, id string) (*Model[T], bool, error) {
	rec, ok, err := t.backend.Get(ctx, t.name, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := fromRecord(rec, t)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// All returns every model in storage order.
func (t *Table[T]) All(ctx context.Context) ([]*Model[T], error) {
	recs, err := t.backend.All(ctx, t.name)
	if err != nil {
		return nil, err
	}
	return t.convert(recs)
}

// ByParent returns the models whose parent is parentID.
func (t *Table[T]) ByParent(ctx context.Context, parentID string) ([]*Model[T], error) {
	recs, err := t.backend.ByParent(ctx, t.name, parentID)
	if err != nil {
		return nil, err
	}
	return t.convert(recs)
}

// Update sets one field, named by its JSON tag.
func (t *Table[T]) Update(ctx context.Context, id, field string, value any) error {
	return t.backend.UpdateField(ctx, t.name, id, field, value)
}

// Delete removes a model by ID.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	return t.backend.Delete(ctx, t.name, id)
}

// Exists reports whether id is stored.
func (t *Table[T]) Exists(ctx context.Context, id string) (bool, error) {
	return t.backend.Exists(ctx, t.name, id)
}

// Watch observes changes of this table. pattern is relative to the table
// ("*" for top-level records, "<parent>/*" for children); empty means all.
func (t *Table[T]) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "**"
	}
	return t.backend.Watch(ctx, t.name+"/"+pattern)
}

func (t *Table[T]) convert(recs []core.Record) ([]*Model[T], error) {
	result := make([]*Model[T], 0, len(recs))
	for _, r := range recs {
		m, err := fromRecord(r, t)
		if err != nil {
			return nil, fmt.Errorf("failed to process record %s: %w", r.ID, err)
		}
		result = append(result, m)
	}
	return result, nil
}

// ToFields converts a struct to record fields through its JSON encoding.
func ToFields(v any) (core.Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var fields core.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to convert typed data to fields: %w", err)
	}
	return fields, nil
}

// FromFields decodes record fields into a T.
func FromFields[T any](fields core.Fields) (T, error) {
	var out T
	data, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("fields marshal failed: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal to target type failed: %w", err)
	}
	return out, nil
}

func fromRecord[T any](rec core.Record, saver Saver[T]) (*Model[T], error) {
	data, err := FromFields[T](rec.Fields)
	if err != nil {
		return nil, err
	}
	return &Model[T]{
		ID:       rec.ID,
		ParentID: rec.ParentID,
		Data:     data,
		Saver:    saver,
	}, nil
}
