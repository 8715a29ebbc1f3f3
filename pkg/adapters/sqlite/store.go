// Package sqlite provides a core.Store backed by an embedded SQLite database
// (modernc.org/sqlite, no cgo).
//
// The store keeps a single connection open so writers are serialised and the
// connection's PRAGMA data_version only moves when another process commits.
// Watch relies on that to turn file notifications into EventReload.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/aretw0/loft/pkg/adapters/sqlstore"
	"github.com/aretw0/loft/pkg/core"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Dialect is the SQLite flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:       "sqlite",
	FieldsType: "TEXT",
	SeqColumn:  "seq INTEGER PRIMARY KEY AUTOINCREMENT",
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the file watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDebounce sets how long file notifications are coalesced before the
// database is checked for external commits. Defaults to 50ms.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// Store is a SQLite implementation of core.Store and core.Watchable.
type Store struct {
	*sqlstore.Store

	path     string
	logger   *slog.Logger
	debounce time.Duration

	closing context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	watchers int
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = "loft.db"
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	closing, stop := context.WithCancel(context.Background())
	s := &Store{
		Store:    sqlstore.New(db, Dialect),
		path:     path,
		logger:   slog.New(slog.DiscardHandler),
		debounce: 50 * time.Millisecond,
		closing:  closing,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close stops every watcher and closes the database.
func (s *Store) Close() error {
	s.stop()
	return s.Store.Close()
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.DB().QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("data_version: %w", err)
	}
	return v, nil
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Path     string   `json:"path"`
	Tables   []string `json:"tables"`
	Watchers int      `json:"watchers"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{
		Path:     s.path,
		Tables:   s.Tables(),
		Watchers: s.watchers,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "sqlite"
}

var (
	_ core.Store                   = (*Store)(nil)
	_ core.Watchable               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
