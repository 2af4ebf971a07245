// Package registry provides bidirectional identifier maps for extensible
// instance families such as scale types, modifiers and easings.
package registry

import (
	"slices"
	"sync"
)

// Family maps identifiers to entries and back. The first registration of an
// identifier wins; later registrations for the same identifier return the
// existing entry untouched. Families are safe for concurrent use.
type Family[E comparable] struct {
	name      ID
	defaultID ID

	mu      sync.RWMutex
	entries map[ID]E
	ids     map[E]ID
}

// NewFamily constructs an empty family. defaultID names the entry returned by
// Default and LookupOrDefault; it does not need to be registered yet.
func NewFamily[E comparable](name, defaultID ID) *Family[E] {
	return &Family[E]{
		name:      name,
		defaultID: defaultID,
		entries:   make(map[ID]E),
		ids:       make(map[E]ID),
	}
}

// Name returns the family identifier.
func (f *Family[E]) Name() ID {
	if f == nil {
		return ID{}
	}
	return f.name
}

// Register stores entry under id unless the id is already bound, and returns
// the entry that is bound after the call. An entry already bound to a
// different id keeps its original binding.
func (f *Family[E]) Register(id ID, entry E) E {
	if f == nil {
		return entry
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.entries[id]; ok {
		return existing
	}
	if _, bound := f.ids[entry]; bound {
		return entry
	}
	f.entries[id] = entry
	f.ids[entry] = id
	return entry
}

// Lookup returns the entry bound to id.
func (f *Family[E]) Lookup(id ID) (E, bool) {
	var zero E
	if f == nil {
		return zero, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.entries[id]
	if !ok {
		return zero, false
	}
	return entry, true
}

// IDOf returns the identifier bound to entry.
func (f *Family[E]) IDOf(entry E) (ID, bool) {
	if f == nil {
		return ID{}, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.ids[entry]
	return id, ok
}

// DefaultID returns the identifier fixed for this family at creation.
func (f *Family[E]) DefaultID() ID {
	if f == nil {
		return ID{}
	}
	return f.defaultID
}

// Default returns the entry registered under DefaultID.
func (f *Family[E]) Default() (E, bool) {
	return f.Lookup(f.DefaultID())
}

// LookupOrDefault returns the entry for id, falling back to the default
// entry (or the zero value when neither is registered).
func (f *Family[E]) LookupOrDefault(id ID) E {
	if entry, ok := f.Lookup(id); ok {
		return entry
	}
	entry, _ := f.Default()
	return entry
}

// IDs returns every bound identifier in text order.
func (f *Family[E]) IDs() []ID {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	ids := make([]ID, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	f.mu.RUnlock()
	slices.SortFunc(ids, ID.Compare)
	return ids
}

// Len reports the number of bound entries.
func (f *Family[E]) Len() int {
	if f == nil {
		return 0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
