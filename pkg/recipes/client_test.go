package recipes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/recipes"
	"github.com/aretw0/loft/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMealServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/random.php":
			_, _ = w.Write([]byte(`{"meals":[{"idMeal":"52772","strMeal":"Teriyaki Chicken Casserole","strMealThumb":"https://img/t.jpg","strCategory":"Chicken","strArea":"Japanese"}]}`))
		case "/search.php":
			if r.URL.Query().Get("s") == "soup" {
				_, _ = w.Write([]byte(`{"meals":[{"idMeal":"1","strMeal":"Leek Soup"},{"idMeal":"2","strMeal":"Pea Soup"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"meals":null}`))
		case "/lookup.php":
			if r.URL.Query().Get("i") == "52772" {
				_, _ = w.Write([]byte(`{"meals":[{"idMeal":"52772","strMeal":"Teriyaki Chicken Casserole","strInstructions":"Preheat oven."}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"meals":null}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMealDB(t *testing.T) {
	server := newMealServer(t)
	db := recipes.NewMealDB(remote.NewClient(server.URL))
	ctx := context.Background()

	meal, err := db.Random(ctx)
	require.NoError(t, err)
	assert.Equal(t, recipes.Meal{
		ID:       "52772",
		Name:     "Teriyaki Chicken Casserole",
		ImageURL: "https://img/t.jpg",
		Category: "Chicken",
		Area:     "Japanese",
	}, meal)

	meals, err := db.Search(ctx, "soup")
	require.NoError(t, err)
	assert.Len(t, meals, 2)

	_, err = db.Search(ctx, "zzz")
	assert.ErrorIs(t, err, core.ErrNoResults)

	meal, err = db.Lookup(ctx, "52772")
	require.NoError(t, err)
	assert.Equal(t, "Preheat oven.", meal.Instructions)

	_, err = db.Lookup(ctx, "0")
	assert.ErrorIs(t, err, core.ErrNoResults)
}

func TestMealDB_RemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	db := recipes.NewMealDB(remote.NewClient(server.URL))
	_, err := db.Random(context.Background())
	assert.ErrorIs(t, err, core.ErrRemote)
}
