// Package memory provides an in-process audit sink used in tests and in
// deployments without a broker.
package memory

import (
	"sync"

	"tenderwatch/pkg/platform/audit"
)

// Sink accumulates events in memory.
type Sink struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *Sink {
	return &Sink{}
}

func (s *Sink) Publish(event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (s *Sink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Sink) Close() error {
	return nil
}
