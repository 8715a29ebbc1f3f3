// Package lifecycle exposes store change feeds as lifecycle sources.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/loft/pkg/core"
)

type storeSource struct {
	watchable core.Watchable
	pattern   string
	out       chan lifecycle.Event
}

// NewSource creates a lifecycle.Source emitting the changes of w whose key
// matches pattern. core.Event satisfies lifecycle.Event through String.
func NewSource(w core.Watchable, pattern string) lifecycle.Source {
	return &storeSource{
		watchable: w,
		pattern:   pattern,
		out:       make(chan lifecycle.Event),
	}
}

func (s *storeSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start subscribes and forwards events until ctx ends or the feed closes.
// The Events channel is closed afterwards.
func (s *storeSource) Start(ctx context.Context) error {
	events, err := s.watchable.Watch(ctx, s.pattern)
	if err != nil {
		close(s.out)
		return fmt.Errorf("subscribe %q: %w", s.pattern, err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
