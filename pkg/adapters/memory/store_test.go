package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/loft/pkg/adapters/memory"
	"github.com/aretw0/loft/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	require.NoError(t, s.Initialize(context.Background(), core.Schema{Table: "labs", Parent: "subjects"}))
	return s
}

func TestStore_OrderAndReplace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"3", "1", "2"} {
		require.NoError(t, s.Upsert(ctx, "labs", core.Record{ID: id, ParentID: "s", Fields: core.Fields{"title": id}}))
	}
	require.NoError(t, s.Upsert(ctx, "labs", core.Record{ID: "1", ParentID: "s", Fields: core.Fields{"title": "one"}}))

	all, err := s.All(ctx, "labs")
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
	assert.Equal(t, "one", all[1].Fields["title"])
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	fields := core.Fields{"title": "CI"}
	require.NoError(t, s.Upsert(ctx, "labs", core.Record{ID: "1", ParentID: "s", Fields: fields}))
	fields["title"] = "mutated"

	got, ok, err := s.Get(ctx, "labs", "1")
	require.NoError(t, err)
	require.True(t, ok)
	got.Fields["title"] = "mutated again"

	again, _, _ := s.Get(ctx, "labs", "1")
	assert.Equal(t, "CI", again.Fields["title"])
}

func TestStore_ReturnsDeepCopies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tags := []any{"ci"}
	meta := map[string]any{"year": float64(2026)}
	require.NoError(t, s.Upsert(ctx, "labs", core.Record{ID: "1", ParentID: "s", Fields: core.Fields{"tags": tags, "meta": meta}}))
	tags[0] = "mutated"
	meta["year"] = float64(1999)

	got, _, err := s.Get(ctx, "labs", "1")
	require.NoError(t, err)
	got.Fields["tags"].([]any)[0] = "mutated again"
	got.Fields["meta"].(map[string]any)["year"] = float64(0)

	again, _, err := s.Get(ctx, "labs", "1")
	require.NoError(t, err)
	assert.Equal(t, []any{"ci"}, again.Fields["tags"])
	assert.Equal(t, map[string]any{"year": float64(2026)}, again.Fields["meta"])
}

func TestStore_UpdateFieldAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.UpdateField(ctx, "labs", "1", "status", "Done"), core.ErrNotFound)

	require.NoError(t, s.Upsert(ctx, "labs", core.Record{ID: "1", ParentID: "s", Fields: core.Fields{"title": "CI"}}))
	require.NoError(t, s.UpdateField(ctx, "labs", "1", "status", "Done"))

	got, _, err := s.Get(ctx, "labs", "1")
	require.NoError(t, err)
	assert.Equal(t, core.Fields{"title": "CI", "status": "Done"}, got.Fields)

	require.NoError(t, s.Delete(ctx, "labs", "1"))
	require.NoError(t, s.Delete(ctx, "labs", "1"))
	ok, err := s.Exists(ctx, "labs", "1")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.All(ctx, "labs")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_UnknownTableAndClosed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.All(ctx, "nope")
	assert.Error(t, err)

	require.NoError(t, s.Close())
	_, err = s.All(ctx, "labs")
	assert.Error(t, err)

	state := s.State().(memory.StoreState)
	assert.True(t, state.Closed)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("%d", i)
			assert.NoError(t, s.Upsert(ctx, "labs", core.Record{ID: id, ParentID: "s"}))
			assert.NoError(t, s.UpdateField(ctx, "labs", id, "status", "Done"))
		}(i)
	}
	wg.Wait()

	children, err := s.ByParent(ctx, "labs", "s")
	require.NoError(t, err)
	assert.Len(t, children, 50)
	assert.Equal(t, map[string]int{"labs": 50}, s.State().(memory.StoreState).Tables)
}
