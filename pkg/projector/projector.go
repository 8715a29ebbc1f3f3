// Package projector derives reactive view state from a load function.
//
// A Projector moves through Idle, Loading and then Populated or Failed.
// Every Reload gets a new generation. Only the most recently issued load may
// publish its result: issuing a reload cancels the one in flight, and a
// result that arrives for an older generation is discarded.
package projector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"

	"github.com/aretw0/loft/pkg/core"
)

// DefaultSubscriberBuffer is the channel size given to subscribers.
const DefaultSubscriberBuffer = 16

// Loader produces the projected value.
type Loader[T any] func(ctx context.Context) (T, error)

// Recorder receives the outcome of every applied or discarded load.
type Recorder interface {
	ObserveLoad(projector string, outcome string, duration time.Duration)
}

// Load outcomes reported to a Recorder.
const (
	OutcomePopulated = "populated"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

// Option configures a Projector.
type Option func(*options)

type options struct {
	name     string
	logger   *slog.Logger
	recorder Recorder
	buffer   int
}

// WithName names the projector in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSubscriberBuffer sets the subscriber channel size.
func WithSubscriberBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// Projector holds the view state produced by a Loader.
type Projector[T any] struct {
	load Loader[T]
	opts options

	base context.Context
	stop context.CancelFunc

	mu          sync.Mutex
	state       State[T]
	issued      uint64
	loading     bool
	cancel      context.CancelFunc
	settled     chan struct{}
	initialized bool
	closed      bool
	subs        map[chan State[T]]struct{}
}

// New creates an Idle projector.
func New[T any](load Loader[T], opts ...Option) *Projector[T] {
	o := options{
		name:   "projector",
		logger: slog.New(slog.DiscardHandler),
		buffer: DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	base, stop := context.WithCancel(context.Background())
	return &Projector[T]{
		load:  load,
		opts:  o,
		base:  base,
		stop:  stop,
		state: State[T]{Status: StatusIdle},
		subs:  make(map[chan State[T]]struct{}),
	}
}

// Name returns the projector name.
func (p *Projector[T]) Name() string { return p.opts.name }

// Initialize issues the first load. Later calls do nothing and return the
// latest issued generation.
func (p *Projector[T]) Initialize(ctx context.Context) uint64 {
	p.mu.Lock()
	if p.initialized {
		g := p.issued
		p.mu.Unlock()
		return g
	}
	p.initialized = true
	p.mu.Unlock()
	return p.Reload(ctx)
}

// Reload enters Loading and starts a new load, superseding any load in
// flight. It returns the generation of the new load, or 0 once closed.
func (p *Projector[T]) Reload(ctx context.Context) uint64 {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	p.initialized = true
	if p.cancel != nil {
		p.cancel()
	}
	p.issued++
	gen := p.issued

	loadCtx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(p.base, cancel)
	p.cancel = cancel

	if !p.loading {
		p.settled = make(chan struct{})
		p.loading = true
	}
	p.state.Status = StatusLoading
	p.state.Generation = gen
	p.state.Err = nil
	p.notifyLocked()
	p.mu.Unlock()

	p.opts.logger.Debug("reload issued", "projector", p.opts.name, "generation", gen)

	lifecycle.Go(p.base, func(context.Context) error {
		defer stopOnClose()
		defer cancel()
		start := time.Now()
		data, err := p.safeLoad(loadCtx)
		p.finish(gen, data, err, time.Since(start))
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		p.opts.logger.Error("projector load failed", "projector", p.opts.name, "error", err)
	}))
	return gen
}

func (p *Projector[T]) safeLoad(ctx context.Context) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.opts.logger.Error("loader panic",
				"projector", p.opts.name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("loader panic (correlation_id: %s)", correlationID)
		}
	}()
	return p.load(ctx)
}

func (p *Projector[T]) finish(gen uint64, data T, err error, took time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.issued || p.closed {
		p.opts.logger.Debug("stale load discarded", "projector", p.opts.name, "generation", gen, "latest", p.issued)
		p.record(OutcomeStale, took)
		return
	}

	p.cancel = nil
	p.loading = false
	p.state.Generation = gen
	p.state.UpdatedAt = time.Now()
	if err != nil {
		p.state.Status = StatusFailed
		p.state.Err = err
		p.opts.logger.Warn("load failed", "projector", p.opts.name, "generation", gen, "error", err)
		p.record(OutcomeFailed, took)
	} else {
		p.state.Status = StatusPopulated
		p.state.Data = data
		p.state.Err = nil
		p.record(OutcomePopulated, took)
	}
	close(p.settled)
	p.notifyLocked()
}

func (p *Projector[T]) record(outcome string, took time.Duration) {
	if p.opts.recorder != nil {
		p.opts.recorder.ObserveLoad(p.opts.name, outcome, took)
	}
}

// Snapshot returns the current state.
func (p *Projector[T]) Snapshot() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Settle waits until no load is in flight and returns the resulting state.
func (p *Projector[T]) Settle(ctx context.Context) (State[T], error) {
	for {
		p.mu.Lock()
		if !p.loading || p.closed {
			st := p.state
			p.mu.Unlock()
			return st, nil
		}
		ch := p.settled
		p.mu.Unlock()

		select {
		case <-ch:
		case <-p.base.Done():
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		}
	}
}

// Mutate runs a write. On success it reloads and waits for the reload to
// settle. On failure the state is left untouched and the write error is
// returned.
func (p *Projector[T]) Mutate(ctx context.Context, action func(ctx context.Context) error) (State[T], error) {
	if err := action(ctx); err != nil {
		return p.Snapshot(), err
	}
	p.Reload(ctx)
	return p.Settle(ctx)
}

// Follow reloads the projector whenever w reports a change matching
// pattern, until ctx ends or the projector is closed. Events that pile up
// while a reload is issued are coalesced into that reload.
func (p *Projector[T]) Follow(ctx context.Context, w core.Watchable, pattern string) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(p.base, cancel)

	events, err := w.Watch(runCtx, pattern)
	if err != nil {
		stopOnClose()
		cancel()
		return fmt.Errorf("follow %q: %w", pattern, err)
	}

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer stopOnClose()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				p.opts.logger.Debug("change observed", "projector", p.opts.name, "event", e.String())
				drain(events)
				p.Reload(p.base)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		p.opts.logger.Error("follow loop failed", "projector", p.opts.name, "error", err)
	}))
	return nil
}

func drain(events <-chan core.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Subscribe returns a channel receiving every state transition, starting
// with the current state. When the buffer is full the oldest queued state is
// dropped so the latest one always gets through.
func (p *Projector[T]) Subscribe() <-chan State[T] {
	ch := make(chan State[T], p.opts.buffer)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch
	}
	p.subs[ch] = struct{}{}
	ch <- p.state
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once.
func (p *Projector[T]) Unsubscribe(ch <-chan State[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sub := range p.subs {
		if sub == ch {
			delete(p.subs, sub)
			close(sub)
			return
		}
	}
}

func (p *Projector[T]) notifyLocked() {
	for ch := range p.subs {
		select {
		case ch <- p.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p.state:
			default:
			}
		}
	}
}

// Close cancels the load in flight, stops every Follow loop and closes the
// subscriber channels. The last state stays readable through Snapshot.
func (p *Projector[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.stop()
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
}

// Info is the introspection view of a projector.
type Info struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Generation  uint64    `json:"generation"`
	Issued      uint64    `json:"issued"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Subscribers int       `json:"subscribers"`
	Closed      bool      `json:"closed"`
}

// State implements introspection.Introspectable.
func (p *Projector[T]) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Info{
		Name:        p.opts.name,
		Status:      p.state.Status,
		Generation:  p.state.Generation,
		Issued:      p.issued,
		Error:       p.state.Error(),
		UpdatedAt:   p.state.UpdatedAt,
		Subscribers: len(p.subs),
		Closed:      p.closed,
	}
}

// ComponentType implements introspection.Component.
func (p *Projector[T]) ComponentType() string {
	return "projector"
}
