// Package scale implements per-entity scale state: smooth tick-based
// transitions, the ordered modifier pipeline applied on read, and the wire
// and document codecs shared by the sync and save layers.
package scale

// DefaultScaleTickDelay is the transition length assigned to new state.
const DefaultScaleTickDelay int32 = 20

// Entity is the non-owning back-reference from scale data to its owner. It
// only answers whether this process is authoritative for the entity, which
// gates the sync flag.
type Entity interface {
	Authoritative() bool
}

// Data is the mutable scale record for one entity and scale type. It is not
// safe for concurrent use; the simulation loop owns it.
type Data struct {
	scale      float32
	prevScale  float32
	fromScale  float32
	toScale    float32
	scaleTicks int32
	totalTicks int32

	shouldSync bool
	frozen     bool
	// reading is set while modifiers run, to cut multiplier cycles.
	reading bool

	scaleType *Type
	entity    Entity
	modifiers ModifierSet
}

// Identity is an immutable scale of 1.0 of the Invalid type.
var Identity = NewBuilder().BuildImmutable(1.0)

func newData(t *Type, e Entity) *Data {
	if t == nil {
		t = Invalid
	}
	d := &Data{
		scale:      1.0,
		prevScale:  1.0,
		fromScale:  1.0,
		toScale:    1.0,
		totalTicks: DefaultScaleTickDelay,
		scaleType:  t,
		entity:     e,
	}
	d.modifiers.AddAll(t.defaults...)
	return d
}

// Builder assembles Data. The zero value is usable.
type Builder struct {
	scaleType *Type
	entity    Entity
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Type sets the scale type.
func (b *Builder) Type(t *Type) *Builder {
	b.scaleType = t
	return b
}

// Entity sets the owning entity reference.
func (b *Builder) Entity(e Entity) *Builder {
	b.entity = e
	return b
}

// Build returns mutable scale data.
func (b *Builder) Build() *Data {
	return newData(b.scaleType, b.entity)
}

// BuildImmutable returns data frozen at value. Every mutator on it is a
// no-op and reads bypass the modifier pipeline.
func (b *Builder) BuildImmutable(value float32) *Data {
	d := newData(b.scaleType, b.entity)
	d.scale = value
	d.prevScale = value
	d.fromScale = value
	d.toScale = value
	d.frozen = true
	return d
}

// Immutable reports whether d was built with BuildImmutable.
func (d *Data) Immutable() bool {
	return d != nil && d.frozen
}

// ScaleType returns the scale type d belongs to.
func (d *Data) ScaleType() *Type {
	if d == nil {
		return nil
	}
	return d.scaleType
}

// Entity returns the owning entity reference, which may be nil.
func (d *Data) Entity() Entity {
	if d == nil {
		return nil
	}
	return d.entity
}

// BaseScaleAt returns the unmodified scale interpolated between the
// previous and current value. A delta of exactly 1 returns the current
// value; other values extrapolate without clamping.
func (d *Data) BaseScaleAt(delta float32) float32 {
	if d == nil {
		return 1.0
	}
	if delta == 1.0 {
		return d.scale
	}
	// The conversion rounds the product before the add so it is never fused.
	return d.prevScale + float32(delta*(d.scale-d.prevScale))
}

// BaseScale returns the current unmodified scale.
func (d *Data) BaseScale() float32 {
	return d.BaseScaleAt(1.0)
}

// ScaleAt returns the base scale at delta with every modifier applied in
// ascending priority order.
func (d *Data) ScaleAt(delta float32) float32 {
	if d == nil {
		return 1.0
	}
	if d.frozen || d.reading {
		return d.BaseScaleAt(delta)
	}
	d.reading = true
	defer func() { d.reading = false }()
	return ComputeScale(d, d.BaseScaleAt(delta), d.modifiers.items, delta)
}

// Scale returns the current modified scale.
func (d *Data) Scale() float32 {
	return d.ScaleAt(1.0)
}

// SetBaseScale moves the current value to v without a transition and
// notifies listeners.
func (d *Data) SetBaseScale(v float32) {
	if d == nil || d.frozen {
		return
	}
	d.prevScale = d.BaseScale()
	d.scale = v
	d.OnUpdate()
}

// SetTargetScale starts a transition from the current value to v over the
// configured tick delay.
func (d *Data) SetTargetScale(v float32) {
	if d == nil || d.frozen {
		return
	}
	d.fromScale = d.BaseScale()
	d.toScale = v
	d.scaleTicks = 0
	d.MarkForSync(true)
}

// SetScale resizes instantly: base and target both become v.
func (d *Data) SetScale(v float32) {
	d.SetBaseScale(v)
	d.SetTargetScale(v)
}

// PrevScale returns the value observed at the start of the previous tick.
func (d *Data) PrevScale() float32 {
	if d == nil {
		return 1.0
	}
	return d.prevScale
}

// InitialScale returns the value the current transition started from.
func (d *Data) InitialScale() float32 {
	if d == nil {
		return 1.0
	}
	return d.fromScale
}

// TargetScale returns the value the current transition moves toward.
func (d *Data) TargetScale() float32 {
	if d == nil {
		return 1.0
	}
	return d.toScale
}

// ScaleTicks returns the ticks elapsed in the current transition.
func (d *Data) ScaleTicks() int32 {
	if d == nil {
		return 0
	}
	return d.scaleTicks
}

// ScaleTickDelay returns the transition length in ticks.
func (d *Data) ScaleTickDelay() int32 {
	if d == nil {
		return DefaultScaleTickDelay
	}
	return d.totalTicks
}

// SetScaleTickDelay sets the transition length in ticks.
func (d *Data) SetScaleTickDelay(ticks int32) {
	if d == nil || d.frozen {
		return
	}
	d.totalTicks = ticks
	d.MarkForSync(true)
}

// MarkForSync sets the sync flag. It is ignored unless the owning entity is
// present and authoritative in this process.
func (d *Data) MarkForSync(sync bool) {
	if d == nil || d.frozen {
		return
	}
	if d.entity == nil || !d.entity.Authoritative() {
		return
	}
	d.shouldSync = sync
}

// ShouldSync reports pending changes for the sync layer.
func (d *Data) ShouldSync() bool {
	return d != nil && d.shouldSync
}

// OnUpdate marks d for sync and notifies the scale type's listeners.
func (d *Data) OnUpdate() {
	if d == nil || d.frozen {
		return
	}
	d.MarkForSync(true)
	d.scaleType.notify(d)
}

// Modifiers returns the active modifiers in evaluation order.
func (d *Data) Modifiers() []*Modifier {
	if d == nil {
		return nil
	}
	return d.modifiers.Slice()
}

// HasModifier reports whether m is active.
func (d *Data) HasModifier(m *Modifier) bool {
	return d != nil && d.modifiers.Contains(m)
}

// AddModifier activates m. It does not notify listeners.
func (d *Data) AddModifier(m *Modifier) bool {
	if d == nil || d.frozen {
		return false
	}
	return d.modifiers.Add(m)
}

// RemoveModifier deactivates m. It does not notify listeners.
func (d *Data) RemoveModifier(m *Modifier) bool {
	if d == nil || d.frozen {
		return false
	}
	return d.modifiers.Remove(m)
}

// ResetModifiers restores the scale type's default modifiers.
func (d *Data) ResetModifiers() {
	if d == nil || d.frozen {
		return
	}
	d.modifiers.Clear()
	d.modifiers.AddAll(d.scaleType.defaults...)
}

// Reset returns d to an instant scale of 1.0 with the default delay and
// modifiers, then notifies listeners.
func (d *Data) Reset() {
	if d == nil || d.frozen {
		return
	}
	d.scale = 1.0
	d.prevScale = 1.0
	d.fromScale = 1.0
	d.toScale = 1.0
	d.scaleTicks = 0
	d.totalTicks = DefaultScaleTickDelay
	d.ResetModifiers()
	d.OnUpdate()
}

// CopyFrom replaces the scale and timing fields with other's. Modifiers are
// left alone.
func (d *Data) CopyFrom(other *Data, notify bool) {
	if d == nil || d.frozen || other == nil {
		return
	}
	d.scale = other.BaseScale()
	d.prevScale = other.prevScale
	d.fromScale = other.fromScale
	d.toScale = other.toScale
	d.scaleTicks = other.scaleTicks
	d.totalTicks = other.totalTicks
	if notify {
		d.OnUpdate()
	}
}
