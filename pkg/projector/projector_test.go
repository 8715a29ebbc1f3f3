package projector_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/loft/pkg/adapters/memory"
	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settle[T any](t *testing.T, p *projector.Projector[T]) projector.State[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := p.Settle(ctx)
	require.NoError(t, err)
	return st
}

func TestProjector_InitializePopulates(t *testing.T) {
	var calls atomic.Int32
	p := projector.New(func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"DevOPS"}, nil
	})
	defer p.Close()

	assert.Equal(t, projector.StatusIdle, p.Snapshot().Status)

	gen := p.Initialize(context.Background())
	st := settle(t, p)
	assert.Equal(t, projector.StatusPopulated, st.Status)
	assert.Equal(t, []string{"DevOPS"}, st.Data)
	assert.Equal(t, gen, st.Generation)
	assert.False(t, st.UpdatedAt.IsZero())

	assert.Equal(t, gen, p.Initialize(context.Background()))
	settle(t, p)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProjector_FailedKeepsPreviousData(t *testing.T) {
	errBoom := errors.New("boom")
	var fail atomic.Bool
	p := projector.New(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errBoom
		}
		return 42, nil
	})
	defer p.Close()

	p.Reload(context.Background())
	settle(t, p)

	fail.Store(true)
	p.Reload(context.Background())
	st := settle(t, p)
	assert.Equal(t, projector.StatusFailed, st.Status)
	assert.ErrorIs(t, st.Err, errBoom)
	assert.Equal(t, "boom", st.Error())
	assert.Equal(t, 42, st.Data)
}

// Two reloads overlap and the first one resolves last. The snapshot must
// reflect the second one only.
func TestProjector_LastIssuedReloadWins(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	firstCancelled := make(chan struct{})

	p := projector.New(func(ctx context.Context) ([]string, error) {
		switch calls.Add(1) {
		case 1:
			<-ctx.Done()
			close(firstCancelled)
			<-release
			return []string{"stale", "stale"}, nil
		default:
			return []string{"fresh"}, nil
		}
	})
	defer p.Close()

	g1 := p.Reload(context.Background())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	g2 := p.Reload(context.Background())
	assert.Greater(t, g2, g1)

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("superseded load was not cancelled")
	}

	st := settle(t, p)
	assert.Equal(t, []string{"fresh"}, st.Data)
	assert.Equal(t, g2, st.Generation)

	close(release)
	time.Sleep(50 * time.Millisecond)
	st = p.Snapshot()
	assert.Equal(t, projector.StatusPopulated, st.Status)
	assert.Equal(t, []string{"fresh"}, st.Data)
	assert.Equal(t, g2, st.Generation)
}

func TestProjector_MutateReloadsAfterWrite(t *testing.T) {
	ctx := context.Background()
	svc := core.NewService(memory.NewStore(), []core.Schema{{Table: "favorites"}})
	require.NoError(t, svc.Initialize(ctx))
	defer func() { _ = svc.Close() }()

	p := projector.New(func(ctx context.Context) (bool, error) {
		return svc.Exists(ctx, "favorites", "55")
	})
	defer p.Close()

	p.Initialize(ctx)
	assert.False(t, settle(t, p).Data)

	st, err := p.Mutate(ctx, func(ctx context.Context) error {
		return svc.Upsert(ctx, "favorites", core.Record{ID: "55"})
	})
	require.NoError(t, err)
	assert.True(t, st.Data)

	st, err = p.Mutate(ctx, func(ctx context.Context) error {
		return svc.Delete(ctx, "favorites", "55")
	})
	require.NoError(t, err)
	assert.False(t, st.Data)

	errWrite := errors.New("write failed")
	before := p.Snapshot()
	st, err = p.Mutate(ctx, func(ctx context.Context) error { return errWrite })
	assert.ErrorIs(t, err, errWrite)
	assert.Equal(t, before.Generation, st.Generation)
}

func TestProjector_FollowReloadsOnMatchingChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := core.NewService(memory.NewStore(), []core.Schema{{Table: "favorites"}, {Table: "subjects"}})
	require.NoError(t, svc.Initialize(ctx))
	defer func() { _ = svc.Close() }()

	var loads atomic.Int32
	p := projector.New(func(ctx context.Context) (int, error) {
		loads.Add(1)
		recs, err := svc.All(ctx, "favorites")
		return len(recs), err
	})
	defer p.Close()

	require.NoError(t, p.Follow(ctx, svc, "favorites/*"))
	p.Initialize(ctx)
	settle(t, p)

	require.NoError(t, svc.Upsert(ctx, "favorites", core.Record{ID: "1"}))
	require.Eventually(t, func() bool {
		st := p.Snapshot()
		return st.Status == projector.StatusPopulated && st.Data == 1
	}, 2*time.Second, 10*time.Millisecond)

	n := loads.Load()
	require.NoError(t, svc.Upsert(ctx, "subjects", core.Record{ID: "1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, loads.Load(), "unrelated table does not trigger a reload")
}

func TestProjector_FollowInvalidPattern(t *testing.T) {
	svc := core.NewService(memory.NewStore(), nil)
	p := projector.New(func(ctx context.Context) (int, error) { return 0, nil })
	defer p.Close()
	assert.Error(t, p.Follow(context.Background(), svc, "["))
}

func TestProjector_LoaderPanicBecomesFailed(t *testing.T) {
	p := projector.New(func(ctx context.Context) (int, error) {
		panic("kaboom")
	})
	defer p.Close()

	p.Reload(context.Background())
	st := settle(t, p)
	assert.Equal(t, projector.StatusFailed, st.Status)
	assert.Contains(t, st.Error(), "correlation_id")
}

func TestProjector_SubscribeSeesTransitions(t *testing.T) {
	p := projector.New(func(ctx context.Context) (string, error) { return "ok", nil })
	defer p.Close()

	ch := p.Subscribe()
	first := <-ch
	assert.Equal(t, projector.StatusIdle, first.Status)

	p.Reload(context.Background())
	var seen []projector.Status
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case st := <-ch:
			seen = append(seen, st.Status)
		case <-timeout:
			t.Fatalf("transitions seen: %v", seen)
		}
	}
	assert.Equal(t, []projector.Status{projector.StatusLoading, projector.StatusPopulated}, seen)

	p.Unsubscribe(ch)
	p.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestProjector_SlowSubscriberGetsLatest(t *testing.T) {
	var n atomic.Int32
	p := projector.New(func(ctx context.Context) (int32, error) {
		return n.Add(1), nil
	}, projector.WithSubscriberBuffer(1))
	defer p.Close()

	ch := p.Subscribe()
	for i := 0; i < 5; i++ {
		p.Reload(context.Background())
		settle(t, p)
	}

	last := <-ch
	assert.Equal(t, projector.StatusPopulated, last.Status)
	assert.Equal(t, int32(5), last.Data)
}

func TestProjector_CloseCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	cancelled := make(chan struct{})
	p := projector.New(func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})

	ch := p.Subscribe()
	p.Reload(context.Background())
	<-started
	p.Close()
	p.Close()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("load not cancelled on close")
	}

	settle(t, p)
	assert.Equal(t, uint64(0), p.Reload(context.Background()))

	for range ch {
	}
	info := p.State().(projector.Info)
	assert.True(t, info.Closed)
	assert.Equal(t, "projector", p.ComponentType())
}

type loadRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *loadRecorder) ObserveLoad(_ string, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestProjector_Recorder(t *testing.T) {
	rec := &loadRecorder{}
	p := projector.New(func(ctx context.Context) (int, error) { return 1, nil },
		projector.WithRecorder(rec), projector.WithName("labs"))
	defer p.Close()

	p.Reload(context.Background())
	settle(t, p)
	assert.Equal(t, "labs", p.Name())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{projector.OutcomePopulated}, rec.outcomes)
}
