package scale

import "github.com/MerchantPug/Pehkui/registry"

// Holder is implemented by entities that own scale data for several types.
type Holder interface {
	ScaleData(t *Type) *Data
}

// TypeResolver looks up scale types by identifier.
type TypeResolver interface {
	Lookup(id registry.ID) (*Type, bool)
}

// TypeMultiplierModifier multiplies the running value by the owning
// entity's scale of the source type at the same delta. The source is
// resolved on every call, so it may be registered after the modifier. The
// value passes through when the entity holds no data for the source or the
// source is the data being computed. A source already being read further up
// the chain contributes its base scale, so a cycle cannot recurse.
func TypeMultiplierModifier(id registry.ID, priority int, sourceID registry.ID, types TypeResolver) *Modifier {
	m := newTypeMultiplier(id, priority, sourceID, types)
	m.source = &multiplierSource{id: sourceID, types: types}
	return m
}

func newTypeMultiplier(id registry.ID, priority int, sourceID registry.ID, types TypeResolver) *Modifier {
	return NewModifier(id, priority, func(d *Data, value, delta float32) float32 {
		if types == nil {
			return value
		}
		holder, ok := d.Entity().(Holder)
		if !ok {
			return value
		}
		source, ok := types.Lookup(sourceID)
		if !ok {
			return value
		}
		src := holder.ScaleData(source)
		if src == nil || src == d {
			return value
		}
		return value * src.ScaleAt(delta)
	})
}

// WouldCycle reports whether adding m to d creates a type multiplier chain
// that leads back to d's type. The chain follows the owning entity's data
// where it exists and the type defaults otherwise, since untracked types
// are seeded with their defaults.
func (d *Data) WouldCycle(m *Modifier) bool {
	if d == nil {
		return false
	}
	start, ok := m.Source()
	if !ok {
		return false
	}
	holder, _ := d.Entity().(Holder)
	target := d.ScaleType()
	visited := make(map[*Type]bool)
	pending := []*Type{start}
	for len(pending) > 0 {
		t := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if t == target {
			return true
		}
		if visited[t] {
			continue
		}
		visited[t] = true

		mods := t.DefaultModifiers()
		if holder != nil {
			if data := holder.ScaleData(t); data != nil {
				mods = data.Modifiers()
			}
		}
		for _, next := range mods {
			if src, ok := next.Source(); ok {
				pending = append(pending, src)
			}
		}
	}
	return false
}
