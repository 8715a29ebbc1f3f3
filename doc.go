// Package loft is the composition root of loft, a local-first record cache.
//
// loft keeps small domain tables (study subjects and labs, favorite meals)
// in a keyed store, fetches the rest from remote JSON origins, and derives
// reactive view states that re-load whenever the data they read changes.
//
// Layers:
//
//   - pkg/core: storage-agnostic records, schemas, change events and the
//     Service every adapter sits behind.
//   - pkg/adapters: memory, SQLite (modernc) and Postgres (pgx) stores.
//   - pkg/typed: generic typed tables over untyped records.
//   - pkg/projector: Idle/Loading/Populated/Failed view states with
//     last-issued-wins reloads.
//   - pkg/tracker, pkg/recipes, pkg/weather: the domain repositories.
//
// Usage:
//
//	app, err := loft.New(ctx,
//		loft.WithAdapter("sqlite"),
//		loft.WithPath("loft.db"),
//		loft.WithLogger(logger),
//	)
//	defer app.Close()
//
//	err = app.Tracker.UpdateStatus(ctx, "10", tracker.StatusDone)
package loft
