package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loft/internal/metrics"
	"github.com/aretw0/loft/pkg/adapters/memory"
	"github.com/aretw0/loft/pkg/core"
)

func scrape(t *testing.T, r *metrics.Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder_StoreOperations(t *testing.T) {
	ctx := context.Background()
	rec := metrics.New(false)

	svc := core.NewService(memory.NewStore(), []core.Schema{{Table: "favorites", Required: []string{"name"}}}, core.WithMetrics(rec))
	require.NoError(t, svc.Initialize(ctx))
	defer svc.Close()

	require.NoError(t, svc.Upsert(ctx, "favorites", core.Record{ID: "55", Fields: core.Fields{"name": "Soup"}}))
	require.Error(t, svc.Upsert(ctx, "favorites", core.Record{ID: "56"}))

	out := scrape(t, rec)
	assert.Contains(t, out, `loft_store_operations_total{operation="upsert",result="ok",table="favorites"} 1`)
	assert.Contains(t, out, `loft_store_operations_total{operation="upsert",result="error",table="favorites"} 1`)
	assert.Contains(t, out, `loft_store_operation_duration_seconds_count{operation="upsert",table="favorites"} 2`)
}

func TestRecorder_RemoteAndProjector(t *testing.T) {
	rec := metrics.New(false)
	rec.ObserveRemote("themealdb", "search.php", 200, true, 30*time.Millisecond)
	rec.ObserveRemote("themealdb", "search.php", 0, false, time.Second)
	rec.ObserveLoad("favorites", "populated", time.Millisecond)

	out := scrape(t, rec)
	assert.Contains(t, out, `loft_remote_requests_total{endpoint="search.php",origin="themealdb",result="ok",status="200"} 1`)
	assert.Contains(t, out, `loft_remote_requests_total{endpoint="search.php",origin="themealdb",result="error",status="none"} 1`)
	assert.Contains(t, out, `loft_projector_loads_total{outcome="populated",projector="favorites"} 1`)
}

func TestRecorder_RuntimeCollectors(t *testing.T) {
	out := scrape(t, metrics.New(true))
	assert.Contains(t, out, "go_goroutines")
}
