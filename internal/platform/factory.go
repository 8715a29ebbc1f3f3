package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/introspection"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/recipes"
	"github.com/aretw0/loft/pkg/remote"
	"github.com/aretw0/loft/pkg/tracker"
	"github.com/aretw0/loft/pkg/weather"
)

// App is the composition root: one store handle per process, shared by the
// domain repositories built on top of it.
type App struct {
	Service *core.Service
	Tracker *tracker.Repository
	Recipes *recipes.Repository
	Weather *weather.Repository

	logger   *slog.Logger
	recorder Recorder
	clients  []*remote.Client
}

// Schemas returns every table the App declares, in creation order.
func Schemas() []core.Schema {
	return slices.Concat(tracker.Schemas(), recipes.Schemas())
}

// New opens the configured store, initializes its tables and wires the
// domain repositories.
//
//	app, err := platform.New(ctx, platform.WithAdapter("memory"))
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := openStore(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s store: %w", core.ErrStore, o.adapter, err)
	}

	svcOpts := []core.Option{
		core.WithLogger(logger),
		core.WithReadOnly(o.readOnly),
		core.WithEventBuffer(o.eventBuffer),
	}
	if o.recorder != nil {
		svcOpts = append(svcOpts, core.WithMetrics(o.recorder))
	}
	svc := core.NewService(store, Schemas(), svcOpts...)

	if err := svc.Initialize(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	if o.watch {
		if err := svc.Start(ctx); err != nil {
			_ = svc.Close()
			return nil, err
		}
	}

	app := &App{Service: svc, logger: logger, recorder: o.recorder}

	meals := app.client(o, o.mealsURL)
	forecasts := app.client(o, o.weatherURL)
	app.Tracker = tracker.NewRepository(svc, logger)
	app.Recipes = recipes.NewRepository(recipes.NewMealDB(meals), svc, logger)
	app.Weather = weather.NewRepository(weather.NewOpenWeather(forecasts, o.weatherKey, o.units))

	if o.autoSeed && !o.readOnly {
		if err := app.seed(ctx, o.seedFile); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	logger.Debug("loft ready", "adapter", o.adapter, "read_only", o.readOnly, "watch", o.watch)
	return app, nil
}

func (a *App) client(o *options, baseURL string) *remote.Client {
	clientOpts := []remote.Option{remote.WithTimeout(o.remoteTimeout), remote.WithLogger(a.logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, remote.WithHTTPClient(o.httpClient))
	}
	if o.recorder != nil {
		clientOpts = append(clientOpts, remote.WithRecorder(o.recorder))
	}
	c := remote.NewClient(baseURL, clientOpts...)
	a.clients = append(a.clients, c)
	return c
}

func (a *App) seed(ctx context.Context, file string) error {
	seed := tracker.DefaultSeed()
	if file != "" {
		var err error
		if seed, err = tracker.LoadSeedFile(file); err != nil {
			return err
		}
	}
	seeded, err := a.Tracker.Seed(ctx, seed)
	if err != nil {
		return err
	}
	if seeded {
		a.logger.Info("seeded tracker tables", "subjects", len(seed.Subjects))
	}
	return nil
}

// Logger returns the logger shared by the App's components.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// ViewOptions returns the projector options every view of this App should use.
func (a *App) ViewOptions(name string) []projector.Option {
	opts := []projector.Option{projector.WithName(name), projector.WithLogger(a.logger)}
	if a.recorder != nil {
		opts = append(opts, projector.WithRecorder(a.recorder))
	}
	return opts
}

// Close releases remote connections and closes the store.
func (a *App) Close() error {
	for _, c := range a.clients {
		c.Close()
	}
	return a.Service.Close()
}

// AppState is the introspection view of an App.
type AppState struct {
	Service core.ServiceState `json:"service"`
	Remotes []string          `json:"remotes"`
}

// State implements introspection.Introspectable.
func (a *App) State() any {
	st := AppState{}
	if s, ok := a.Service.State().(core.ServiceState); ok {
		st.Service = s
	}
	for _, c := range a.clients {
		st.Remotes = append(st.Remotes, c.BaseURL())
	}
	return st
}

// ComponentType implements introspection.Component.
func (a *App) ComponentType() string {
	return "loft"
}

var _ introspection.Introspectable = (*App)(nil)

// IsNotFound reports whether err means an absent record or empty remote result.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrNoResults)
}
