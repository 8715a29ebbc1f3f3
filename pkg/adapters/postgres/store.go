// Package postgres provides a core.Store backed by PostgreSQL through the
// pgx database/sql driver. Records live in one table per schema with the
// fields column stored as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/aretw0/introspection"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver

	"github.com/aretw0/loft/pkg/adapters/sqlstore"
	"github.com/aretw0/loft/pkg/core"
)

const (
	driverName = "pgx"

	// DefaultDSN is used when Open receives an empty DSN.
	DefaultDSN = "postgres://localhost/loft?sslmode=disable"
)

// Dialect is the PostgreSQL flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:          "postgres",
	Numbered:      true,
	FieldsType:    "JSONB",
	SeqColumn:     "seq BIGSERIAL PRIMARY KEY",
	LockForUpdate: true,
	FieldsCast:    "::jsonb",
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a PostgreSQL implementation of core.Store.
type Store struct {
	*sqlstore.Store
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{Store: sqlstore.New(db, Dialect)}, nil
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Tables          []string `json:"tables"`
	OpenConnections int      `json:"open_connections"`
	InUse           int      `json:"in_use"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	stats := s.DB().Stats()
	return StoreState{
		Tables:          s.Tables(),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "postgres"
}

var (
	_ core.Store                   = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
