package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	EventBufferSize  int      `json:"event_buffer_size"`
	EventSubscribers int      `json:"event_subscribers"`
	StoreType        string   `json:"store_type"`
	Tables           []string `json:"tables"`
	ReadOnly         bool     `json:"read_only"`
	Bridged          bool     `json:"bridged"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storeType := "unknown"
	if s.store != nil {
		storeType = "store"
		if comp, ok := s.store.(introspection.Component); ok {
			storeType = comp.ComponentType()
		}
	}

	tables := make([]string, len(s.order))
	copy(tables, s.order)

	return ServiceState{
		EventBufferSize:  s.broker.buffer,
		EventSubscribers: s.broker.Len(),
		StoreType:        storeType,
		Tables:           tables,
		ReadOnly:         s.readOnly,
		Bridged:          s.started,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
