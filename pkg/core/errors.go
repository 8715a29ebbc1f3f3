package core

import "errors"

// Common errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrUnknownTable  = errors.New("unknown table")
	ErrReadOnly      = errors.New("store is in read-only mode")

	// ErrStore wraps failures of the underlying persistence engine.
	ErrStore = errors.New("store failure")

	// ErrRemote wraps network, status and decoding failures of a remote origin.
	ErrRemote = errors.New("remote failure")

	// ErrNoResults is returned when a remote query succeeds but yields nothing.
	ErrNoResults = errors.New("no results")
)
