package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loft/internal/metrics"
	"github.com/aretw0/loft/internal/platform"
	"github.com/aretw0/loft/internal/server"
	"github.com/aretw0/loft/pkg/tracker"
)

// newOrigin fakes TheMealDB and OpenWeather on one server.
func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		switch r.URL.Path {
		case "/search.php":
			if q.Get("s") == "soup" {
				_, _ = w.Write([]byte(`{"meals":[{"idMeal":"1","strMeal":"Leek Soup"},{"idMeal":"2","strMeal":"Pea Soup"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"meals":null}`))
		case "/random.php":
			_, _ = w.Write([]byte(`{"meals":[{"idMeal":"55","strMeal":"Borscht"}]}`))
		case "/lookup.php":
			switch q.Get("i") {
			case "55":
				_, _ = w.Write([]byte(`{"meals":[{"idMeal":"55","strMeal":"Borscht","strArea":"Ukrainian"}]}`))
			case "500":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				_, _ = w.Write([]byte(`{"meals":null}`))
			}
		case "/weather":
			if q.Get("q") != "Kyiv" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"name":"Kyiv","coord":{"lat":50.45,"lon":30.52},"main":{"temp":12.5}}`))
		case "/forecast":
			_, _ = w.Write([]byte(`{"city":{"name":"Kyiv","country":"UA"},"list":[{"dt":1,"dt_txt":"2026-10-16 12:00:00","main":{"temp":13}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(origin.Close)
	return origin
}

func newApp(t *testing.T, opts ...platform.Option) *platform.App {
	t.Helper()
	origin := newOrigin(t)
	base := []platform.Option{
		platform.WithAdapter(platform.AdapterMemory),
		platform.WithAutoSeed(""),
		platform.WithMealsURL(origin.URL),
		platform.WithWeather(origin.URL, "test-key", ""),
	}
	app, err := platform.New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTrackerRoutes(t *testing.T) {
	h := server.New(newApp(t), "").Router()

	rec := do(t, h, http.MethodGet, "/api/subjects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	subjects := decode[[]map[string]string](t, rec)
	require.Len(t, subjects, 3)
	assert.Equal(t, "3", subjects[2]["id"])
	assert.Equal(t, "DevOPS", subjects[2]["title"])

	rec = do(t, h, http.MethodGet, "/api/subjects/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subject_id":"3"`)

	rec = do(t, h, http.MethodPut, "/api/labs/3/status", `{"status":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lab := decode[map[string]string](t, rec)
	assert.Equal(t, "Done", lab["status"])

	rec = do(t, h, http.MethodPut, "/api/labs/3/comment", `{"comment":"compose file reviewed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	lab = decode[map[string]string](t, rec)
	assert.Equal(t, "compose file reviewed", lab["comment"])
	assert.Equal(t, "Done", lab["status"], "comment edit keeps the status")
}

func TestTrackerRoutes_Errors(t *testing.T) {
	h := server.New(newApp(t), "").Router()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown subject", http.MethodGet, "/api/subjects/99", "", http.StatusNotFound},
		{"unknown lab", http.MethodGet, "/api/labs/99", "", http.StatusNotFound},
		{"status of unknown lab", http.MethodPut, "/api/labs/99/status", `{"status":"Done"}`, http.StatusNotFound},
		{"invalid status", http.MethodPut, "/api/labs/3/status", `{"status":"Finished"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPut, "/api/labs/3/status", `{"status":`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/api/labs/3/comment", `{"note":"x"}`, http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/subjects", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestReadOnly(t *testing.T) {
	app := newApp(t, platform.WithReadOnly(true))
	h := server.New(app, "").Router()

	rec := do(t, h, http.MethodPut, "/api/labs/3/status", `{"status":"Done"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecipeRoutes(t *testing.T) {
	h := server.New(newApp(t), "").Router()

	rec := do(t, h, http.MethodGet, "/api/meals/search?q=soup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/api/meals/search?q=nothing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/meals/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/meals/random", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"idMeal":"55"`)

	rec = do(t, h, http.MethodGet, "/api/meals/55", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"favored":false`)

	rec = do(t, h, http.MethodPut, "/api/favorites/55", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/meals/55", "")
	assert.Contains(t, rec.Body.String(), `"favored":true`)

	rec = do(t, h, http.MethodPut, "/api/favorites/77", `{"strMeal":"Offline Stew","strMealThumb":"x.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/favorites", "")
	favorites := decode[[]map[string]any](t, rec)
	require.Len(t, favorites, 2)
	assert.Equal(t, "55", favorites[0]["idMeal"])
	assert.Equal(t, "77", favorites[1]["idMeal"])

	rec = do(t, h, http.MethodDelete, "/api/favorites/55", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/meals/55", "")
	assert.Contains(t, rec.Body.String(), `"favored":false`)

	rec = do(t, h, http.MethodGet, "/api/meals/0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/meals/500", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWeatherRoutes(t *testing.T) {
	h := server.New(newApp(t), "").Router()

	rec := do(t, h, http.MethodGet, "/api/weather/Kyiv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"temp":12.5`)

	rec = do(t, h, http.MethodGet, "/api/weather/Atlantis", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/weather/Kyiv/forecast", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"country":"UA"`)
}

func TestOperationalRoutes(t *testing.T) {
	rec := metrics.New(false)
	app := newApp(t, platform.WithRecorder(rec))
	h := server.New(app, "", server.WithMetricsHandler(rec.Handler())).Router()

	res := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, "abc", res.Header().Get("X-Request-ID"))

	_ = do(t, h, http.MethodGet, "/api/subjects", "")
	res = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `loft_store_operations_total{operation="all",result="ok",table="subjects"}`)

	res = do(t, h, http.MethodGet, "/debug/state", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"store_type":"memory"`)
}

// sseData returns the data lines of an SSE stream.
func sseData(body io.Reader) <-chan string {
	out := make(chan string, 64)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(body)
		for sc.Scan() {
			if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				out <- line
			}
		}
	}()
	return out
}

// waitForState reads states until match reports true or the timeout hits.
func waitForState(t *testing.T, states <-chan string, match func(string) bool) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case data, ok := <-states:
			if !ok {
				t.Fatal("stream ended")
			}
			if match(data) {
				return
			}
		case <-timeout:
			t.Fatal("expected state was not streamed")
		}
	}
}

func TestSubjectEvents_StreamsChanges(t *testing.T) {
	app := newApp(t)
	srv := httptest.NewServer(server.New(app, "").Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/subjects/3", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	states := sseData(resp.Body)
	waitForState(t, states, func(data string) bool {
		return strings.Contains(data, `"status":"populated"`) && strings.Contains(data, `"Not started"`)
	})

	require.NoError(t, app.Tracker.UpdateStatus(context.Background(), "3", tracker.StatusDone))

	waitForState(t, states, func(data string) bool {
		return strings.Contains(data, `"status":"populated"`) && strings.Contains(data, `"status":"Done"`)
	})
}

func TestFavoritesEvents_ViewIsTracked(t *testing.T) {
	app := newApp(t)
	h := server.New(app, "").Router()
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/favorites", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	waitForState(t, sseData(resp.Body), func(data string) bool { return strings.Contains(data, `"status":"populated"`) })

	res := do(t, h, http.MethodGet, "/debug/state", "")
	assert.Contains(t, res.Body.String(), `"name":"favorites"`)

	cancel()
	assert.Eventually(t, func() bool {
		res := do(t, h, http.MethodGet, "/debug/state", "")
		return strings.Contains(res.Body.String(), `"views":[]`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	srv := server.New(newApp(t), "127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}
