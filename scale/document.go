package scale

import (
	"github.com/MerchantPug/Pehkui/registry"
)

// Document field names shared by the save format and the wire decoder.
const (
	FieldScale      = "scale"
	FieldPrevious   = "previous"
	FieldInitial    = "initial"
	FieldTarget     = "target"
	FieldTicks      = "ticks"
	FieldTotalTicks = "total_ticks"
	FieldModifiers  = "baseValueModifiers"
)

// Document is the keyed persisted form of Data. Nil fields are absent and
// take their defaults on decode.
type Document struct {
	Scale      *float32 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Previous   *float32 `yaml:"previous,omitempty" json:"previous,omitempty"`
	Initial    *float32 `yaml:"initial,omitempty" json:"initial,omitempty"`
	Target     *float32 `yaml:"target,omitempty" json:"target,omitempty"`
	Ticks      *int32   `yaml:"ticks,omitempty" json:"ticks,omitempty"`
	TotalTicks *int32   `yaml:"total_ticks,omitempty" json:"total_ticks,omitempty"`
	// BaseValueModifiers lists modifiers active beyond the type defaults.
	BaseValueModifiers []string `yaml:"baseValueModifiers,omitempty" json:"baseValueModifiers,omitempty"`
}

// ToDocument encodes d. Default modifiers of the scale type are never
// written, and modifiers without a registry identifier are skipped.
func (d *Data) ToDocument(mods ModifierRegistry) Document {
	if d == nil {
		return Document{}
	}
	return Document{
		Scale:              ptr(d.BaseScale()),
		Previous:           ptr(d.prevScale),
		Initial:            ptr(d.fromScale),
		Target:             ptr(d.toScale),
		Ticks:              ptr(d.scaleTicks),
		TotalTicks:         ptr(d.totalTicks),
		BaseValueModifiers: d.syncedModifierIDs(mods),
	}
}

// FromDocument replaces d's fields with doc, applying defaults for absent
// fields. The modifier set is reset to the type defaults before the listed
// modifiers are overlaid; identifiers that fail to parse or resolve are
// skipped and returned. Listeners are notified once the state is applied.
func (d *Data) FromDocument(doc Document, mods ModifierRegistry) (skipped []string) {
	if d == nil || d.frozen {
		return nil
	}
	d.scale = valueOr(doc.Scale, 1.0)
	d.prevScale = valueOr(doc.Previous, d.scale)
	d.fromScale = valueOr(doc.Initial, d.scale)
	d.toScale = valueOr(doc.Target, d.scale)
	d.scaleTicks = valueOr(doc.Ticks, 0)
	d.totalTicks = valueOr(doc.TotalTicks, DefaultScaleTickDelay)

	d.ResetModifiers()
	for _, text := range doc.BaseValueModifiers {
		m, ok := resolveModifier(mods, text)
		if !ok {
			skipped = append(skipped, text)
			continue
		}
		d.modifiers.Add(m)
	}

	d.OnUpdate()
	return skipped
}

// syncedModifierIDs lists the identifiers of active modifiers that are not
// type defaults, in evaluation order.
func (d *Data) syncedModifierIDs(mods ModifierRegistry) []string {
	extra := d.modifiers.Without(d.scaleType.defaults)
	if len(extra) == 0 || mods == nil {
		return nil
	}
	ids := make([]string, 0, len(extra))
	for _, m := range extra {
		id, ok := mods.IDOf(m)
		if !ok {
			continue
		}
		ids = append(ids, id.String())
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func resolveModifier(mods ModifierRegistry, text string) (*Modifier, bool) {
	if mods == nil {
		return nil, false
	}
	id, ok := registry.ParseID(text)
	if !ok {
		return nil, false
	}
	m, ok := mods.Lookup(id)
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

func ptr[T any](v T) *T {
	return &v
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
