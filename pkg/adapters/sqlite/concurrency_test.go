package sqlite_test

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loft/pkg/core"
)

// TestConcurrency_ExternalVsInternal writes the same file from a service and
// from a second handle standing in for another process. Neither side may
// fail, and the watching service must see the other side's commits.
func TestConcurrency_ExternalVsInternal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	path := filepath.Join(t.TempDir(), "loft.db")
	svc := core.NewService(openStore(t, path), schemas)
	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	external := openStore(t, path)

	// reloads bypass the pattern, local writes never match it
	events, err := svc.Watch(context.Background(), "reloads-only")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			id := fmt.Sprintf("noise-%d", rand.Intn(10))
			record(external.Upsert(context.Background(), "subjects", core.Record{
				ID:     id,
				Fields: core.Fields{"title": fmt.Sprintf("Noise %d", time.Now().UnixNano())},
			}))
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			id := fmt.Sprintf("data-%d", rand.Intn(10))
			record(svc.Upsert(context.Background(), "subjects", core.Record{
				ID:     id,
				Fields: core.Fields{"title": "Internal", "ts": time.Now().Unix()},
			}))
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		}
	}()
	wg.Wait()

	assert.Empty(t, errs)

	all, err := svc.All(context.Background(), "subjects")
	require.NoError(t, err)
	assert.NotEmpty(t, all)
	for _, rec := range all {
		assert.NotEmpty(t, rec.Fields["title"], rec.ID)
	}

	sawReload := false
	timeout := time.After(2 * time.Second)
	for !sawReload {
		select {
		case e := <-events:
			sawReload = e.Type == core.EventReload
		case <-timeout:
			t.Fatal("service never reported the external commits")
		}
	}
}
