package scale

import (
	"slices"
	"sync"
)

// Listener observes scale data after it changes.
type Listener func(d *Data)

// Type is a category of scaling. It owns the default modifier list seeded
// into every Data of this type and the change notification channel.
type Type struct {
	defaults []*Modifier

	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    uint64
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Invalid is the fallback type used when a builder has no type set.
var Invalid = NewType()

// NewType constructs a type with the given default modifiers.
func NewType(defaults ...*Modifier) *Type {
	set := NewModifierSet(defaults...)
	return &Type{defaults: set.Slice()}
}

// DefaultModifiers returns the sorted default modifier list.
func (t *Type) DefaultModifiers() []*Modifier {
	if t == nil {
		return nil
	}
	return slices.Clone(t.defaults)
}

// IsDefault reports whether m belongs to the default list.
func (t *Type) IsDefault(m *Modifier) bool {
	if t == nil {
		return false
	}
	return slices.Contains(t.defaults, m)
}

// Subscribe registers l for change notifications. The returned function
// removes the subscription; calling it more than once is harmless.
func (t *Type) Subscribe(l Listener) (cancel func()) {
	if t == nil || l == nil {
		return func() {}
	}
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listenerEntry{id: id, fn: l})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.listeners = slices.DeleteFunc(t.listeners, func(e listenerEntry) bool {
				return e.id == id
			})
		})
	}
}

// ListenerCount reports the active subscriptions.
func (t *Type) ListenerCount() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners)
}

func (t *Type) notify(d *Data) {
	if t == nil {
		return
	}
	t.mu.RLock()
	if len(t.listeners) == 0 {
		t.mu.RUnlock()
		return
	}
	listeners := slices.Clone(t.listeners)
	t.mu.RUnlock()
	for _, l := range listeners {
		l.fn(d)
	}
}
