package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/loft/pkg/adapters/memory"
	"github.com/aretw0/loft/pkg/adapters/postgres"
	"github.com/aretw0/loft/pkg/adapters/sqlite"
	"github.com/aretw0/loft/pkg/core"
)

// OpenStore returns the storage adapter selected by the options.
// The store is not initialized; core.Service.Initialize does that.
func OpenStore(ctx context.Context, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return openStore(ctx, o)
}

func openStore(ctx context.Context, o *options) (core.Store, error) {
	if o.store != nil {
		return o.store, nil
	}

	switch o.adapter {
	case AdapterMemory:
		return memory.NewStore(), nil
	case AdapterSQLite:
		return openSQLite(o)
	case AdapterPostgres:
		if o.dsn == "" {
			return nil, fmt.Errorf("postgres adapter requires a DSN")
		}
		return postgres.Open(ctx, o.dsn)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// openSQLite handles path resolution for the sqlite adapter.
func openSQLite(o *options) (core.Store, error) {
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// read-only runs and explicit opt-outs use the real path
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	path := ResolveDataPath(o.path, useTemp)

	if IsDevRun() {
		if bypassSafety {
			logger.Debug("dev sandbox bypassed", "path", path, "read_only", o.readOnly)
		} else {
			logger.Debug("dev sandbox enabled", "path", path)
		}
	}
	if useTemp && path != o.path {
		logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", o.path, "resolved_path", path)
	}

	sqliteOpts := []sqlite.Option{sqlite.WithLogger(logger)}
	if o.debounce > 0 {
		sqliteOpts = append(sqliteOpts, sqlite.WithDebounce(o.debounce))
	}
	return sqlite.Open(path, sqliteOpts...)
}
