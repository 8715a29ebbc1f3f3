// Package core holds the storage-agnostic domain of loft: records, table
// schemas, change events and the Service that fronts every storage adapter.
package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Fields represents the domain fields of a record, keyed by field name.
// Values are JSON values: string, float64, bool, nil, []any and
// map[string]any. Service normalizes writes to that form so every adapter
// reads back the same types.
type Fields map[string]any

// NormalizeFields converts fields to their JSON value form.
func NormalizeFields(fields Fields) (Fields, error) {
	if fields == nil {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeValue converts a single field value to its JSON value form.
func NormalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Record is one row of a table.
// It is identified by ID within its table and optionally points at a parent
// record of another table through ParentID.
type Record struct {
	ID       string
	ParentID string
	Fields   Fields
}

// Clone returns a copy whose Fields can be mutated without touching r.
// Nested maps and slices are copied too.
func (r Record) Clone() Record {
	out := Record{ID: r.ID, ParentID: r.ParentID}
	if r.Fields != nil {
		out.Fields = make(Fields, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = CloneValue(v)
		}
	}
	return out
}

// CloneValue copies nested maps and slices of a field value.
func CloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = CloneValue(e)
		}
		return out
	case Fields:
		out := make(Fields, len(v))
		for k, e := range v {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Schema describes a table. It is configuration handed to the store at
// construction, not something the store discovers.
type Schema struct {
	// Table is the table name. It must be a plain identifier.
	Table string `yaml:"table" json:"table"`

	// Parent names the parent table when records carry a ParentID.
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`

	// Required lists the fields that must be present and non-empty on insert.
	Required []string `yaml:"required,omitempty" json:"required,omitempty"`
}

// Validate checks a record against the schema.
func (s Schema) Validate(r Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: %s: empty id", ErrInvalidRecord, s.Table)
	}
	if s.Parent != "" && r.ParentID == "" {
		return fmt.Errorf("%w: %s/%s: missing parent id", ErrInvalidRecord, s.Table, r.ID)
	}
	for _, name := range s.Required {
		v, ok := r.Fields[name]
		if !ok {
			return fmt.Errorf("%w: %s/%s: missing required field %q", ErrInvalidRecord, s.Table, r.ID, name)
		}
		if err := s.ValidateField(r.ID, name, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateField checks a single field value. A required field may be
// neither nil nor a blank string.
func (s Schema) ValidateField(id, name string, v any) error {
	if !slices.Contains(s.Required, name) {
		return nil
	}
	if v == nil {
		return fmt.Errorf("%w: %s/%s: missing required field %q", ErrInvalidRecord, s.Table, id, name)
	}
	if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
		return fmt.Errorf("%w: %s/%s: empty required field %q", ErrInvalidRecord, s.Table, id, name)
	}
	return nil
}

// ValidTableName reports whether name can be used as a table identifier.
// Adapters interpolate table names into SQL, so only [a-z0-9_] is accepted.
func ValidTableName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// EventType represents the type of change in the store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"

	// EventReload tells subscribers that any table may have changed outside
	// of this process. It is delivered to every subscriber.
	EventReload EventType = "RELOAD"
)

// Event represents a change in the store.
type Event struct {
	Type      EventType
	Table     string
	ID        string
	ParentID  string
	Field     string // set for field-level updates
	Timestamp int64  // Unix timestamp
}

// Key is the path watch patterns are matched against:
// "table/id" for top-level records, "table/parent/id" for child records.
func (e Event) Key() string {
	if e.ParentID != "" {
		return e.Table + "/" + e.ParentID + "/" + e.ID
	}
	return e.Table + "/" + e.ID
}

func (e Event) String() string {
	if e.Type == EventReload {
		return string(e.Type)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Key())
}
