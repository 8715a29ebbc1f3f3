package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/loft/pkg/core"
)

// Watch reports commits made to the database file by other processes as
// EventReload. Writes through this Store are already published by
// core.Service and do not show up here. The pattern is ignored because a
// reload concerns every table.
//
// The channel is closed when ctx ends or the store is closed.
func (s *Store) Watch(ctx context.Context, _ string) (<-chan core.Event, error) {
	if s.path == MemoryPath {
		return nil, fmt.Errorf("watch %s: in-memory database has no file", s.path)
	}

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	version, err := s.dataVersion(ctx)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(s.closing, cancel)

	s.mu.Lock()
	s.watchers++
	s.mu.Unlock()

	out := make(chan core.Event, 1)
	base := filepath.Base(abs)

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer func() {
			stopOnClose()
			cancel()
			_ = watcher.Close()
			close(out)
			s.mu.Lock()
			s.watchers--
			s.mu.Unlock()
		}()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				// db file, -wal and -shm companions
				if !strings.HasPrefix(filepath.Base(ev.Name), base) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(s.debounce)
				} else {
					timer.Reset(s.debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				current, err := s.dataVersion(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					s.logger.Error("sqlite watcher", "error", err)
					continue
				}
				if current == version {
					continue
				}
				version = current
				s.logger.Debug("external commit detected", "path", s.path)
				select {
				case out <- core.Event{Type: core.EventReload, Timestamp: time.Now().Unix()}:
				default:
					// a reload is already pending
				}

			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.logger.Error("fsnotify error", "error", wErr)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("sqlite watcher panic", "error", err)
	}))

	return out, nil
}
