package loft

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/loft/internal/platform"
	"github.com/aretw0/loft/pkg/core"
)

// --- Types ---

// App is the handle returned by New.
type App = platform.App

// Config is the file form of the configuration (loft.yaml).
type Config = platform.Config

// Recorder receives store, remote and projector metrics.
type Recorder = platform.Recorder

// --- Configuration ---

// Option defines a functional option for configuring loft.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore allows injecting a custom storage adapter.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the storage adapter by name ("memory", "sqlite", "postgres").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithPath sets the database file of the sqlite adapter.
func WithPath(path string) Option {
	return platform.WithPath(path)
}

// WithDSN sets the connection string of the postgres adapter.
func WithDSN(dsn string) Option {
	return platform.WithDSN(dsn)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithWatch bridges changes committed by other processes into the event feed.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithEventBuffer allows specifying the size of the event broker buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return platform.WithRecorder(r)
}

// WithWeather configures the OpenWeather origin.
func WithWeather(baseURL, key, units string) Option {
	return platform.WithWeather(baseURL, key, units)
}

// WithMealsURL overrides the TheMealDB base URL.
func WithMealsURL(u string) Option {
	return platform.WithMealsURL(u)
}

// WithRemoteTimeout sets the per-request timeout of remote origins.
func WithRemoteTimeout(d time.Duration) Option {
	return platform.WithRemoteTimeout(d)
}

// WithAutoSeed seeds the tracker tables on startup when they are empty.
func WithAutoSeed(file string) Option {
	return platform.WithAutoSeed(file)
}

// --- Factory ---

// New opens the store and wires the domain repositories.
func New(ctx context.Context, opts ...Option) (*App, error) {
	return platform.New(ctx, opts...)
}

// LoadConfig reads loft.yaml (or defaults when path is empty) with LOFT_* overrides.
func LoadConfig(path string) (*Config, error) {
	return platform.Load(path)
}

// --- Safety & Utils ---

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a loft.yaml or .loft directory.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// FindConfig returns the loft.yaml governing startDir, or "" when there is none.
func FindConfig(startDir string) string {
	return platform.FindConfig(startDir)
}
