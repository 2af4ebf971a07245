package scale

import (
	"cmp"

	"github.com/MerchantPug/Pehkui/command"
	"github.com/MerchantPug/Pehkui/registry"
)

// ModifyFunc transforms a running scale value. Implementations may read d but
// must not mutate it.
type ModifyFunc func(d *Data, value, delta float32) float32

// Modifier is an immutable, priority-ordered scale transform.
type Modifier struct {
	id       registry.ID
	priority int
	fn       ModifyFunc

	// source is set on type multipliers.
	source *multiplierSource
}

type multiplierSource struct {
	id    registry.ID
	types TypeResolver
}

// NewModifier constructs a modifier. A nil fn leaves the value unchanged.
func NewModifier(id registry.ID, priority int, fn ModifyFunc) *Modifier {
	return &Modifier{id: id, priority: priority, fn: fn}
}

// ID returns the identifier used for deterministic ordering.
func (m *Modifier) ID() registry.ID {
	if m == nil {
		return registry.ID{}
	}
	return m.id
}

// Priority returns the ordering priority; lower values run first.
func (m *Modifier) Priority() int {
	if m == nil {
		return 0
	}
	return m.priority
}

// Source returns the scale type a type multiplier reads, resolved through
// its registry. It reports false for other modifiers and for sources that
// are not registered.
func (m *Modifier) Source() (*Type, bool) {
	if m == nil || m.source == nil || m.source.types == nil {
		return nil, false
	}
	return m.source.types.Lookup(m.source.id)
}

// Modify applies the modifier to value.
func (m *Modifier) Modify(d *Data, value, delta float32) float32 {
	if m == nil || m.fn == nil {
		return value
	}
	return m.fn(d, value, delta)
}

// CompareModifiers orders by priority, then by identifier text.
func CompareModifiers(a, b *Modifier) int {
	if c := cmp.Compare(a.Priority(), b.Priority()); c != 0 {
		return c
	}
	return a.ID().Compare(b.ID())
}

// ComputeScale folds value through modifiers in the order given. Callers
// pass a sorted slice; later modifiers observe the earlier results.
func ComputeScale(d *Data, value float32, modifiers []*Modifier, delta float32) float32 {
	for _, m := range modifiers {
		value = m.Modify(d, value, delta)
	}
	return value
}

// IdentityModifier returns the value unchanged. It is the default entry of
// the modifier family.
var IdentityModifier = NewModifier(IdentityModifierID, 0, nil)

// OperationModifier builds a modifier that combines the running value with a
// constant operand using op. When op fails (division by zero) the running
// value passes through untouched.
func OperationModifier(id registry.ID, priority int, op command.Operation, operand float32) *Modifier {
	if op == nil {
		return NewModifier(id, priority, nil)
	}
	return NewModifier(id, priority, func(_ *Data, value, _ float32) float32 {
		out, err := op(value, operand)
		if err != nil {
			return value
		}
		return out
	})
}
