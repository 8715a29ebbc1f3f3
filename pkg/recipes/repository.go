package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/typed"
)

// Repository reconciles the remote meal database with local favorites.
// Remote results are never stored unless favored.
type Repository struct {
	origin    Origin
	favorites *typed.Table[favorite]
	logger    *slog.Logger
	now       func() time.Time
}

// NewRepository creates a repository. backend is usually a *core.Service
// configured with Schemas.
func NewRepository(origin Origin, backend typed.Backend, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Repository{
		origin:    origin,
		favorites: typed.NewTable[favorite](backend, FavoritesTable),
		logger:    logger,
		now:       time.Now,
	}
}

// Search queries the remote database. core.ErrNoResults means the query
// matched nothing.
func (r *Repository) Search(ctx context.Context, query string) ([]Meal, error) {
	return r.origin.Search(ctx, query)
}

// Random fetches a random meal.
func (r *Repository) Random(ctx context.Context) (Meal, error) {
	return r.origin.Random(ctx)
}

// Lookup fetches one meal by id.
func (r *Repository) Lookup(ctx context.Context, id string) (Meal, error) {
	return r.origin.Lookup(ctx, id)
}

// Favorites lists the favored meals in the order they were favored.
func (r *Repository) Favorites(ctx context.Context) ([]Meal, error) {
	models, err := r.favorites.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Meal, 0, len(models))
	for _, m := range models {
		out = append(out, m.Data.meal(m.ID))
	}
	return out, nil
}

// IsFavored reports whether a meal is a favorite.
func (r *Repository) IsFavored(ctx context.Context, id string) (bool, error) {
	return r.favorites.Exists(ctx, id)
}

// Favor stores a meal as favorite, replacing a previous copy.
func (r *Repository) Favor(ctx context.Context, meal Meal) error {
	if err := r.favorites.Save(ctx, &typed.Model[favorite]{ID: meal.ID, Data: favoriteOf(meal, r.now())}); err != nil {
		return err
	}
	r.logger.Debug("meal favored", "id", meal.ID)
	return nil
}

// Unfavor deletes a favorite. Unfavoring a meal that is not a favorite is a
// no-op.
func (r *Repository) Unfavor(ctx context.Context, id string) error {
	if err := r.favorites.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Debug("meal unfavored", "id", id)
	return nil
}

// Toggle flips the favorite flag of meal and returns the new value.
func (r *Repository) Toggle(ctx context.Context, meal Meal) (bool, error) {
	favored, err := r.IsFavored(ctx, meal.ID)
	if err != nil {
		return false, err
	}
	if favored {
		return false, r.Unfavor(ctx, meal.ID)
	}
	return true, r.Favor(ctx, meal)
}

// Favored emits whether id is a favorite: the current value first, then
// every change. The channel is closed when ctx ends.
func (r *Repository) Favored(ctx context.Context, id string) (<-chan bool, error) {
	if id == "" || strings.ContainsAny(id, `*?[]{}\/`) {
		return nil, fmt.Errorf("%w: meal id %q", core.ErrInvalidRecord, id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := r.favorites.Watch(runCtx, id)
	if err != nil {
		cancel()
		return nil, err
	}
	current, err := r.IsFavored(runCtx, id)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan bool, 1)
	out <- current

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer cancel()
		defer close(out)
		last := current
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-events:
				if !ok {
					return nil
				}
				now, err := r.IsFavored(ctx, id)
				if err != nil {
					r.logger.Warn("favored check failed", "id", id, "error", err)
					continue
				}
				if now == last {
					continue
				}
				last = now
				select {
				case out <- now:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		r.logger.Error("favored watcher failed", "id", id, "error", err)
	}))
	return out, nil
}

// FavoritesView builds a projector over the favorites list.
func (r *Repository) FavoritesView(opts ...projector.Option) *projector.Projector[[]Meal] {
	return projector.New[[]Meal](r.Favorites, append([]projector.Option{projector.WithName("favorites")}, opts...)...)
}

// SearchView builds a projector over a remote search. Nothing matching is
// an empty list rather than a failure.
func (r *Repository) SearchView(query string, opts ...projector.Option) *projector.Projector[[]Meal] {
	load := func(ctx context.Context) ([]Meal, error) {
		meals, err := r.Search(ctx, query)
		if errors.Is(err, core.ErrNoResults) {
			return []Meal{}, nil
		}
		return meals, err
	}
	return projector.New[[]Meal](load, append([]projector.Option{projector.WithName("search")}, opts...)...)
}

// DetailView builds a projector over one meal and its favorite flag.
func (r *Repository) DetailView(id string, opts ...projector.Option) *projector.Projector[Detail] {
	load := func(ctx context.Context) (Detail, error) {
		meal, err := r.Lookup(ctx, id)
		if err != nil {
			return Detail{}, err
		}
		favored, err := r.IsFavored(ctx, id)
		if err != nil {
			return Detail{}, err
		}
		return Detail{Meal: meal, Favored: favored}, nil
	}
	return projector.New[Detail](load, append([]projector.Option{projector.WithName("meal-" + id)}, opts...)...)
}
