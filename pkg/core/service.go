package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
)

// MetricsRecorder receives the outcome of every store operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation, table string, success bool, duration time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadOnly makes every write return ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(s *Service) { s.readOnly = enabled }
}

// WithEventBuffer sets the per-subscriber event buffer. Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(s *Service) { s.eventBufferSize = size }
}

// WithMetrics registers a recorder for store operations.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the Entity Store handle consumers depend on.
// It validates records against their schema, forwards to the adapter, and
// publishes a change event after every successful mutation.
type Service struct {
	store   Store
	schemas map[string]Schema
	order   []string
	broker  *Broker
	logger  *slog.Logger
	metrics MetricsRecorder

	readOnly        bool
	eventBufferSize int

	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc
}

// NewService creates a new Service over store for the given tables.
func NewService(store Store, schemas []Schema, opts ...Option) *Service {
	s := &Service{
		store:   store,
		schemas: make(map[string]Schema, len(schemas)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, sc := range schemas {
		if _, dup := s.schemas[sc.Table]; !dup {
			s.order = append(s.order, sc.Table)
		}
		s.schemas[sc.Table] = sc
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broker = NewBroker(s.eventBufferSize)
	return s
}

// Initialize ensures every configured table exists in the store.
func (s *Service) Initialize(ctx context.Context) error {
	for _, name := range s.order {
		if !ValidTableName(name) {
			return fmt.Errorf("%w: invalid table name %q", ErrUnknownTable, name)
		}
	}
	if err := s.store.Initialize(ctx, s.Tables()...); err != nil {
		return fmt.Errorf("%w: initialize: %w", ErrStore, err)
	}
	return nil
}

// Start bridges the adapter's own change feed (if any) into the service
// broker, so external writes reach subscribers too. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	w, ok := s.store.(Watchable)
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	events, err := w.Watch(runCtx, "**")
	if err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: watch: %w", ErrStore, err)
	}
	s.started = true
	s.cancel = cancel
	s.mu.Unlock()

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				s.logger.Debug("external change", "event", e.String())
				s.broker.Publish(e)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("event bridge failed", "error", err)
	}))
	return nil
}

// Tables returns the configured schemas in declaration order.
func (s *Service) Tables() []Schema {
	out := make([]Schema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.schemas[name])
	}
	return out
}

// Schema returns the schema of a table.
func (s *Service) Schema(table string) (Schema, bool) {
	sc, ok := s.schemas[table]
	return sc, ok
}

// All returns every record of a table in storage order.
func (s *Service) All(ctx context.Context, table string) (recs []Record, err error) {
	defer s.observe(ctx, "all", table, time.Now(), &err)
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	recs, err = s.store.All(ctx, table)
	if err != nil {
		return nil, storeErr("list", table, "", err)
	}
	return recs, nil
}

// Get retrieves a record by its ID. ok is false when the record is absent.
func (s *Service) Get(ctx context.Context, table, id string) (rec Record, ok bool, err error) {
	defer s.observe(ctx, "get", table, time.Now(), &err)
	if err := s.checkTable(table); err != nil {
		return Record{}, false, err
	}
	rec, ok, err = s.store.Get(ctx, table, id)
	if err != nil {
		return Record{}, false, storeErr("get", table, id, err)
	}
	return rec, ok, nil
}

// ByParent returns every child record of parentID.
func (s *Service) ByParent(ctx context.Context, table, parentID string) (recs []Record, err error) {
	defer s.observe(ctx, "by_parent", table, time.Now(), &err)
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	recs, err = s.store.ByParent(ctx, table, parentID)
	if err != nil {
		return nil, storeErr("list children of", table, parentID, err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// Exists reports whether a record is stored.
func (s *Service) Exists(ctx context.Context, table, id string) (ok bool, err error) {
	defer s.observe(ctx, "exists", table, time.Now(), &err)
	if err := s.checkTable(table); err != nil {
		return false, err
	}
	ok, err = s.store.Exists(ctx, table, id)
	if err != nil {
		return false, storeErr("check", table, id, err)
	}
	return ok, nil
}

// Upsert validates and stores a record, replacing any record with the same ID.
func (s *Service) Upsert(ctx context.Context, table string, rec Record) (err error) {
	defer s.observe(ctx, "upsert", table, time.Now(), &err)
	if err := s.checkWrite(table); err != nil {
		return err
	}
	fields, err := NormalizeFields(rec.Fields)
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrInvalidRecord, table, rec.ID, err)
	}
	rec = Record{ID: rec.ID, ParentID: rec.ParentID, Fields: fields}
	if err := s.schemas[table].Validate(rec); err != nil {
		return err
	}

	prev, existed, err := s.store.Get(ctx, table, rec.ID)
	if err != nil {
		return storeErr("get", table, rec.ID, err)
	}
	if err := s.store.Upsert(ctx, table, rec); err != nil {
		return storeErr("upsert", table, rec.ID, err)
	}

	switch {
	case !existed:
		s.publish(Event{Type: EventCreate, Table: table, ID: rec.ID, ParentID: rec.ParentID})
	case prev.ParentID != rec.ParentID:
		// the record left one parent-filtered subset and joined another
		s.publish(Event{Type: EventDelete, Table: table, ID: rec.ID, ParentID: prev.ParentID})
		s.publish(Event{Type: EventCreate, Table: table, ID: rec.ID, ParentID: rec.ParentID})
	default:
		s.publish(Event{Type: EventModify, Table: table, ID: rec.ID, ParentID: rec.ParentID})
	}
	return nil
}

// UpdateField sets one field of an existing record.
// Returns ErrNotFound when the record is absent.
func (s *Service) UpdateField(ctx context.Context, table, id, field string, value any) (err error) {
	defer s.observe(ctx, "update_field", table, time.Now(), &err)
	if err := s.checkWrite(table); err != nil {
		return err
	}
	if field == "" {
		return fmt.Errorf("%w: %s/%s: empty field name", ErrInvalidRecord, table, id)
	}
	value, err = NormalizeValue(value)
	if err != nil {
		return fmt.Errorf("%w: %s/%s: field %q: %w", ErrInvalidRecord, table, id, field, err)
	}
	if err := s.schemas[table].ValidateField(id, field, value); err != nil {
		return err
	}

	if err := s.store.UpdateField(ctx, table, id, field, value); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("update %s/%s: %w", table, id, err)
		}
		return storeErr("update", table, id, err)
	}

	e := Event{Type: EventModify, Table: table, ID: id, Field: field}
	if s.schemas[table].Parent != "" {
		if rec, ok, gErr := s.store.Get(ctx, table, id); gErr == nil && ok {
			e.ParentID = rec.ParentID
		}
	}
	s.publish(e)
	return nil
}

// Delete removes a record. Deleting an absent record is a no-op and
// publishes nothing.
func (s *Service) Delete(ctx context.Context, table, id string) (err error) {
	defer s.observe(ctx, "delete", table, time.Now(), &err)
	if err := s.checkWrite(table); err != nil {
		return err
	}

	rec, ok, err := s.store.Get(ctx, table, id)
	if err != nil {
		return storeErr("get", table, id, err)
	}
	if !ok {
		return nil
	}
	if err := s.store.Delete(ctx, table, id); err != nil {
		return storeErr("delete", table, id, err)
	}
	s.publish(Event{Type: EventDelete, Table: table, ID: id, ParentID: rec.ParentID})
	return nil
}

// Watch observes changes whose key matches pattern (doublestar syntax over
// "table/id" and "table/parent/id"). The channel is closed when ctx ends.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	ch, cancel, err := s.broker.Subscribe(pattern)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, cancel)
	return ch, nil
}

// Close stops the event bridge, closes every subscription and the store.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.broker.Close()
	return s.store.Close()
}

func (s *Service) publish(e Event) {
	e.Timestamp = time.Now().Unix()
	s.logger.Debug("store changed", "event", e.String())
	s.broker.Publish(e)
}

func (s *Service) checkTable(table string) error {
	if _, ok := s.schemas[table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

func (s *Service) checkWrite(table string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.checkTable(table)
}

func (s *Service) observe(ctx context.Context, op, table string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(ctx, op, table, *err == nil, time.Since(start))
}

func storeErr(op, table, id string, err error) error {
	if id == "" {
		return fmt.Errorf("%w: %s %s: %w", ErrStore, op, table, err)
	}
	return fmt.Errorf("%w: %s %s/%s: %w", ErrStore, op, table, id, err)
}
