// Package recipes searches a remote meal database and keeps a local list of
// favorite meals.
package recipes

import (
	"time"

	"github.com/aretw0/loft/pkg/core"
)

// FavoritesTable is the table holding favored meals.
const FavoritesTable = "favorites"

// Meal is a recipe as served by TheMealDB.
type Meal struct {
	ID           string `json:"idMeal"`
	Name         string `json:"strMeal"`
	ImageURL     string `json:"strMealThumb"`
	Category     string `json:"strCategory,omitempty"`
	Instructions string `json:"strInstructions,omitempty"`
	Area         string `json:"strArea,omitempty"`
}

// favorite is the stored form of a favored meal.
type favorite struct {
	Name         string    `json:"name"`
	ImageURL     string    `json:"image_url"`
	Category     string    `json:"category,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Area         string    `json:"area,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

func favoriteOf(m Meal, now time.Time) favorite {
	return favorite{
		Name:         m.Name,
		ImageURL:     m.ImageURL,
		Category:     m.Category,
		Instructions: m.Instructions,
		Area:         m.Area,
		SavedAt:      now,
	}
}

func (f favorite) meal(id string) Meal {
	return Meal{
		ID:           id,
		Name:         f.Name,
		ImageURL:     f.ImageURL,
		Category:     f.Category,
		Instructions: f.Instructions,
		Area:         f.Area,
	}
}

// Schemas returns the table schemas used by recipes.
func Schemas() []core.Schema {
	return []core.Schema{{Table: FavoritesTable, Required: []string{"name"}}}
}

// Detail is a meal together with its favorite flag.
type Detail struct {
	Meal    Meal `json:"meal"`
	Favored bool `json:"favored"`
}
