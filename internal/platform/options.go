package platform

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/recipes"
	"github.com/aretw0/loft/pkg/remote"
	"github.com/aretw0/loft/pkg/weather"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterMemory   = "memory"
	AdapterSQLite   = "sqlite"
	AdapterPostgres = "postgres"
)

// Recorder receives store, remote and projector metrics.
type Recorder interface {
	core.MetricsRecorder
	remote.Recorder
	projector.Recorder
}

// options holds the internal configuration for a loft App.
type options struct {
	store       core.Store
	logger      *slog.Logger
	adapter     string
	path        string
	dsn         string
	readOnly    bool
	watch       bool
	eventBuffer int
	recorder    Recorder
	debounce    time.Duration

	forceTemp bool
	devSafety bool

	mealsURL      string
	weatherURL    string
	weatherKey    string
	units         string
	remoteTimeout time.Duration
	httpClient    *http.Client

	autoSeed bool
	seedFile string
}

// Option defines a functional option for configuring loft.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:       AdapterSQLite,
		path:          "loft.db",
		devSafety:     true,
		mealsURL:      recipes.DefaultBaseURL,
		weatherURL:    weather.DefaultBaseURL,
		units:         weather.DefaultUnits,
		remoteTimeout: remote.DefaultTimeout,
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore allows injecting a custom storage adapter.
// If provided, the adapter selection is skipped.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the storage adapter by name ("memory", "sqlite", "postgres").
// Defaults to "sqlite".
func WithAdapter(name string) Option {
	return func(o *options) {
		if name != "" {
			o.adapter = name
		}
	}
}

// WithPath sets the database file of the sqlite adapter.
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

// WithDSN sets the connection string of the postgres adapter.
func WithDSN(dsn string) Option {
	return func(o *options) {
		o.dsn = dsn
	}
}

// WithReadOnly enables read-only mode: every write returns core.ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithWatch bridges changes committed by other processes into the event feed.
// Only adapters that can observe foreign writes (sqlite) honour it.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithWatchDebounce sets the quiet period of the sqlite file watcher.
func WithWatchDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithEventBuffer allows specifying the size of the event broker buffer.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithRecorder registers a metrics recorder for store, remote and projector activity.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithForceTemp forces the sqlite database into a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
// By default (true), the sqlite database is re-rooted into a temporary directory.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithMealsURL overrides the TheMealDB base URL.
func WithMealsURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.mealsURL = u
		}
	}
}

// WithWeather configures the OpenWeather origin. Empty values keep the defaults.
func WithWeather(baseURL, key, units string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.weatherURL = baseURL
		}
		o.weatherKey = key
		if units != "" {
			o.units = units
		}
	}
}

// WithRemoteTimeout sets the per-request timeout of remote origins.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.remoteTimeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client of remote origins.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithAutoSeed seeds the tracker tables on startup when they are empty.
// An empty file selects the built-in seed.
func WithAutoSeed(file string) Option {
	return func(o *options) {
		o.autoSeed = true
		o.seedFile = file
	}
}
