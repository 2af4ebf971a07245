package scale

import "slices"

// ModifierSet keeps modifiers sorted by CompareModifiers. Modifiers that
// compare equal are treated as the same member.
type ModifierSet struct {
	items []*Modifier
}

// NewModifierSet builds a set from the provided modifiers.
func NewModifierSet(modifiers ...*Modifier) *ModifierSet {
	s := &ModifierSet{}
	s.AddAll(modifiers...)
	return s
}

func (s *ModifierSet) search(m *Modifier) (int, bool) {
	return slices.BinarySearchFunc(s.items, m, CompareModifiers)
}

// Add inserts m and reports whether the set changed.
func (s *ModifierSet) Add(m *Modifier) bool {
	if s == nil || m == nil {
		return false
	}
	idx, found := s.search(m)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, idx, m)
	return true
}

// AddAll inserts each modifier.
func (s *ModifierSet) AddAll(modifiers ...*Modifier) {
	for _, m := range modifiers {
		s.Add(m)
	}
}

// Remove deletes m and reports whether it was present.
func (s *ModifierSet) Remove(m *Modifier) bool {
	if s == nil || m == nil {
		return false
	}
	idx, found := s.search(m)
	if !found || s.items[idx] != m {
		return false
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	return true
}

// Contains reports whether m itself is a member.
func (s *ModifierSet) Contains(m *Modifier) bool {
	if s == nil || m == nil {
		return false
	}
	idx, found := s.search(m)
	return found && s.items[idx] == m
}

// Clear removes every member.
func (s *ModifierSet) Clear() {
	if s == nil {
		return
	}
	s.items = s.items[:0]
}

// Len reports the member count.
func (s *ModifierSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Slice returns the members in ascending order. The slice is a copy.
func (s *ModifierSet) Slice() []*Modifier {
	if s == nil || len(s.items) == 0 {
		return nil
	}
	return slices.Clone(s.items)
}

// Without returns the members that are not in excluded, preserving order.
func (s *ModifierSet) Without(excluded []*Modifier) []*Modifier {
	if s == nil {
		return nil
	}
	var out []*Modifier
	for _, m := range s.items {
		if slices.Contains(excluded, m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s *ModifierSet) Equal(other *ModifierSet) bool {
	return slices.Equal(s.Slice(), other.Slice())
}
