package sinks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MerchantPug/Pehkui/logging"
)

// MemorySink keeps every event in memory so tests and diagnostics can
// inspect what was published. It also satisfies logging.Publisher.
type MemorySink struct {
	mu      sync.Mutex
	events  []logging.Event
	changed chan struct{}
}

func NewMemorySink() *MemorySink {
	return &MemorySink{changed: make(chan struct{})}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event.Clone())
	close(s.changed)
	s.changed = make(chan struct{})
	return nil
}

func (s *MemorySink) Publish(_ context.Context, event logging.Event) {
	s.Write(event)
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// OfType returns the recorded events of type t in publish order.
func (s *MemorySink) OfType(t logging.EventType) []logging.Event {
	return s.filter(func(e logging.Event) bool { return e.Type == t })
}

// ForSubject returns the events whose subject has the given id.
func (s *MemorySink) ForSubject(id string) []logging.Event {
	return s.filter(func(e logging.Event) bool { return e.Subject.ID == id })
}

func (s *MemorySink) filter(keep func(logging.Event) bool) []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logging.Event
	for _, event := range s.events {
		if keep(event) {
			out = append(out, event)
		}
	}
	return out
}

// WaitFor blocks until at least n events of type t were recorded or the
// timeout elapses, and reports whether the count was reached.
func (s *MemorySink) WaitFor(t logging.EventType, n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		count := 0
		for _, event := range s.events {
			if event.Type == t {
				count++
			}
		}
		changed := s.changed
		s.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-changed:
		case <-timer.C:
			return false
		}
	}
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
