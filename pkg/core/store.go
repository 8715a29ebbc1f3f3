package core

import "context"

// Store defines the contract for keyed table storage.
// Adhering to this interface allows the core to be independent of the
// underlying persistence engine (memory, SQLite, Postgres).
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Initialize ensures the underlying storage is ready (e.g., schema migration).
	Initialize(ctx context.Context, schemas ...Schema) error

	// All returns every record of a table in storage order.
	All(ctx context.Context, table string) ([]Record, error)

	// Get retrieves a record by its ID. Absence is reported with ok=false, not an error.
	Get(ctx context.Context, table, id string) (rec Record, ok bool, err error)

	// ByParent returns the records whose ParentID equals parentID, in storage order.
	ByParent(ctx context.Context, table, parentID string) ([]Record, error)

	// Upsert creates a record, or replaces it wholesale if the ID exists.
	// A replaced record keeps its storage position.
	Upsert(ctx context.Context, table string, rec Record) error

	// UpdateField sets exactly one field of a record. Returns ErrNotFound if absent.
	UpdateField(ctx context.Context, table, id, field string, value any) error

	// Delete removes a record by its ID. Deleting an absent record is a no-op.
	Delete(ctx context.Context, table, id string) error

	// Exists reports whether a record with the given ID is stored.
	Exists(ctx context.Context, table, id string) (bool, error)

	// Close releases the underlying resources.
	Close() error
}

// Watchable is implemented by anything exposing a change feed: the Service
// itself, and stores that observe changes made outside of the current
// process (e.g. another process writing the same database file).
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

// Reader is the read surface shared by Service and typed tables.
type Reader interface {
	All(ctx context.Context, table string) ([]Record, error)
	Get(ctx context.Context, table, id string) (Record, bool, error)
	ByParent(ctx context.Context, table, parentID string) ([]Record, error)
	Exists(ctx context.Context, table, id string) (bool, error)
}

// Writer is the write surface shared by Service and typed tables.
type Writer interface {
	Upsert(ctx context.Context, table string, rec Record) error
	UpdateField(ctx context.Context, table, id, field string, value any) error
	Delete(ctx context.Context, table, id string) error
}
