package recipes

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/remote"
)

// DefaultBaseURL is the public TheMealDB API.
const DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"

// Origin is the remote source of meals.
type Origin interface {
	Search(ctx context.Context, query string) ([]Meal, error)
	Random(ctx context.Context) (Meal, error)
	Lookup(ctx context.Context, id string) (Meal, error)
}

// MealDB talks to a TheMealDB compatible API.
type MealDB struct {
	client *remote.Client
}

// NewMealDB creates an Origin over client.
func NewMealDB(client *remote.Client) *MealDB {
	return &MealDB{client: client}
}

// mealResponse wraps every TheMealDB answer. Meals is null when nothing matched.
type mealResponse struct {
	Meals []Meal `json:"meals"`
}

// Search returns the meals whose name matches query.
func (m *MealDB) Search(ctx context.Context, query string) ([]Meal, error) {
	var resp mealResponse
	if err := m.client.GetJSON(ctx, "search.php", url.Values{"s": {query}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Meals) == 0 {
		return nil, fmt.Errorf("search %q: %w", query, core.ErrNoResults)
	}
	return resp.Meals, nil
}

// Random returns one random meal.
func (m *MealDB) Random(ctx context.Context) (Meal, error) {
	var resp mealResponse
	if err := m.client.GetJSON(ctx, "random.php", nil, &resp); err != nil {
		return Meal{}, err
	}
	if len(resp.Meals) == 0 {
		return Meal{}, fmt.Errorf("random meal: %w", core.ErrNoResults)
	}
	return resp.Meals[0], nil
}

// Lookup returns the meal with the given id.
func (m *MealDB) Lookup(ctx context.Context, id string) (Meal, error) {
	var resp mealResponse
	if err := m.client.GetJSON(ctx, "lookup.php", url.Values{"i": {id}}, &resp); err != nil {
		return Meal{}, err
	}
	if len(resp.Meals) == 0 {
		return Meal{}, fmt.Errorf("meal %s: %w", id, core.ErrNoResults)
	}
	return resp.Meals[0], nil
}
