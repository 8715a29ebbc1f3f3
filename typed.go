package loft

import (
	"github.com/aretw0/loft/pkg/typed"
)

// Model is a record whose fields are decoded into T.
type Model[T any] = typed.Model[T]

// Table gives type-safe access to one table.
type Table[T any] = typed.Table[T]

// NewTable creates a typed table over the App's service (or any typed.Backend).
func NewTable[T any](backend typed.Backend, name string) *Table[T] {
	return typed.NewTable[T](backend, name)
}
