package scale

import (
	"math"
	"testing"

	"github.com/MerchantPug/Pehkui/registry"
)

type testEntity struct {
	authoritative bool
}

func (e *testEntity) Authoritative() bool {
	return e.authoritative
}

func serverEntity() *testEntity {
	return &testEntity{authoritative: true}
}

func multiplyBy(id string, priority int, factor float32) *Modifier {
	return NewModifier(registry.NewID("test", id), priority, func(_ *Data, value, _ float32) float32 {
		return value * factor
	})
}

func addTo(id string, priority int, amount float32) *Modifier {
	return NewModifier(registry.NewID("test", id), priority, func(_ *Data, value, _ float32) float32 {
		return value + amount
	})
}

func TestNewDataDefaults(t *testing.T) {
	d := NewBuilder().Build()
	if d.ScaleType() != Invalid {
		t.Fatalf("expected Invalid type fallback")
	}
	if d.BaseScale() != 1 || d.PrevScale() != 1 || d.InitialScale() != 1 || d.TargetScale() != 1 {
		t.Fatalf("expected unit scale fields")
	}
	if d.ScaleTicks() != 0 || d.ScaleTickDelay() != DefaultScaleTickDelay {
		t.Fatalf("unexpected timing fields: %d/%d", d.ScaleTicks(), d.ScaleTickDelay())
	}
	if d.ShouldSync() {
		t.Fatalf("new data must not be dirty")
	}
}

func TestDataSeedsTypeDefaults(t *testing.T) {
	double := multiplyBy("double", 0, 2)
	typ := NewType(double)
	d := NewBuilder().Type(typ).Build()
	if !d.HasModifier(double) {
		t.Fatalf("expected default modifier to be active")
	}
	if got := d.Scale(); got != 2 {
		t.Fatalf("expected modified scale 2, got %v", got)
	}
	if got := d.BaseScale(); got != 1 {
		t.Fatalf("expected base scale 1, got %v", got)
	}
}

func TestBaseScaleInterpolation(t *testing.T) {
	d := NewBuilder().Build()
	d.SetBaseScale(3)
	if d.PrevScale() != 1 {
		t.Fatalf("expected previous scale 1, got %v", d.PrevScale())
	}
	cases := []struct {
		delta float32
		want  float32
	}{
		{delta: 1, want: 3},
		{delta: 0, want: 1},
		{delta: 0.5, want: 2},
		{delta: 0.25, want: 1.5},
		{delta: 2, want: 5},
		{delta: -1, want: -1},
	}
	for _, tc := range cases {
		if got := d.BaseScaleAt(tc.delta); got != tc.want {
			t.Fatalf("BaseScaleAt(%v) = %v, want %v", tc.delta, got, tc.want)
		}
	}
}

func TestPipelineOrderSensitivity(t *testing.T) {
	double := multiplyBy("double", 0, 2)
	plusOne := addTo("plus_one", 1, 1)
	d := NewBuilder().Type(NewType(double, plusOne)).Build()
	d.SetScale(3)
	if got := d.Scale(); got != 7 {
		t.Fatalf("expected (3*2)+1 = 7, got %v", got)
	}

	doubleLate := multiplyBy("double", 1, 2)
	plusOneEarly := addTo("plus_one", 0, 1)
	swapped := NewBuilder().Type(NewType(doubleLate, plusOneEarly)).Build()
	swapped.SetScale(3)
	if got := swapped.Scale(); got != 8 {
		t.Fatalf("expected (3+1)*2 = 8, got %v", got)
	}
}

func TestModifierSeesInterpolationDelta(t *testing.T) {
	var seen []float32
	probe := NewModifier(registry.NewID("test", "probe"), 0, func(_ *Data, value, delta float32) float32 {
		seen = append(seen, delta)
		return value
	})
	d := NewBuilder().Type(NewType(probe)).Build()
	d.ScaleAt(0.25)
	d.Scale()
	if len(seen) != 2 || seen[0] != 0.25 || seen[1] != 1 {
		t.Fatalf("unexpected deltas %v", seen)
	}
}

func TestSetTargetScaleStartsTransition(t *testing.T) {
	d := NewBuilder().Entity(serverEntity()).Build()
	d.SetScale(2)
	d.MarkForSync(false)

	d.SetTargetScale(4)
	if d.InitialScale() != 2 || d.TargetScale() != 4 || d.ScaleTicks() != 0 {
		t.Fatalf("unexpected transition fields: %v %v %d", d.InitialScale(), d.TargetScale(), d.ScaleTicks())
	}
	if d.BaseScale() != 2 {
		t.Fatalf("target change must not move the base scale")
	}
	if !d.ShouldSync() {
		t.Fatalf("expected target change to mark for sync")
	}
}

func TestMarkForSyncRequiresAuthoritativeEntity(t *testing.T) {
	detached := NewBuilder().Build()
	detached.SetScale(2)
	if detached.ShouldSync() {
		t.Fatalf("data without entity must never be dirty")
	}

	client := NewBuilder().Entity(&testEntity{authoritative: false}).Build()
	client.SetScale(2)
	if client.ShouldSync() {
		t.Fatalf("client-side data must never be dirty")
	}

	server := NewBuilder().Entity(serverEntity()).Build()
	server.SetScaleTickDelay(5)
	if !server.ShouldSync() {
		t.Fatalf("expected delay change to mark server data dirty")
	}
	server.MarkForSync(false)
	if server.ShouldSync() {
		t.Fatalf("expected sync flag to clear")
	}
}

func TestOnUpdateNotifiesTypeListeners(t *testing.T) {
	typ := NewType()
	var calls []*Data
	cancel := typ.Subscribe(func(d *Data) { calls = append(calls, d) })
	d := NewBuilder().Type(typ).Build()

	d.SetBaseScale(2)
	if len(calls) != 1 || calls[0] != d {
		t.Fatalf("expected one notification with the data, got %d", len(calls))
	}
	d.SetTargetScale(3)
	if len(calls) != 1 {
		t.Fatalf("target change must not notify, got %d", len(calls))
	}

	cancel()
	cancel()
	d.SetBaseScale(4)
	if len(calls) != 1 {
		t.Fatalf("expected cancelled listener to stay silent")
	}
	if typ.ListenerCount() != 0 {
		t.Fatalf("expected no listeners, got %d", typ.ListenerCount())
	}
}

func TestModifierMutationDoesNotNotify(t *testing.T) {
	typ := NewType()
	notified := 0
	typ.Subscribe(func(*Data) { notified++ })
	d := NewBuilder().Type(typ).Entity(serverEntity()).Build()
	m := multiplyBy("triple", 0, 3)
	if !d.AddModifier(m) {
		t.Fatalf("expected modifier to be added")
	}
	if d.AddModifier(m) {
		t.Fatalf("expected duplicate add to be rejected")
	}
	if d.Scale() != 3 {
		t.Fatalf("expected modifier to apply, got %v", d.Scale())
	}
	if !d.RemoveModifier(m) || d.HasModifier(m) {
		t.Fatalf("expected modifier removal")
	}
	if notified != 0 || d.ShouldSync() {
		t.Fatalf("modifier mutations must not notify or mark dirty")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	base := multiplyBy("base", 0, 1)
	extra := addTo("extra", 5, 1)
	d := NewBuilder().Type(NewType(base)).Entity(serverEntity()).Build()
	d.SetScale(4)
	d.SetScaleTickDelay(3)
	d.AddModifier(extra)

	d.Reset()
	if d.BaseScale() != 1 || d.TargetScale() != 1 || d.ScaleTickDelay() != DefaultScaleTickDelay {
		t.Fatalf("unexpected reset state")
	}
	if d.HasModifier(extra) || !d.HasModifier(base) {
		t.Fatalf("expected default modifier set after reset")
	}
}

func TestImmutableDataIgnoresMutators(t *testing.T) {
	typ := NewType(multiplyBy("double", 0, 2))
	notified := 0
	typ.Subscribe(func(*Data) { notified++ })
	d := NewBuilder().Type(typ).Entity(serverEntity()).BuildImmutable(0.5)

	d.SetBaseScale(3)
	d.SetTargetScale(3)
	d.SetScale(3)
	d.SetScaleTickDelay(1)
	d.MarkForSync(true)
	d.OnUpdate()
	d.Tick()
	d.Reset()
	d.ResetModifiers()
	d.CopyFrom(NewBuilder().Build(), true)
	d.FromDocument(Document{Scale: ptr(float32(9))}, nil)
	if d.AddModifier(addTo("extra", 0, 1)) {
		t.Fatalf("immutable data must reject modifiers")
	}
	if d.RemoveModifier(d.Modifiers()[0]) {
		t.Fatalf("immutable data must keep its defaults")
	}
	if err := d.AverageFrom(NewBuilder().Build()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Immutable() {
		t.Fatalf("expected immutable flag")
	}
	if d.BaseScale() != 0.5 || d.PrevScale() != 0.5 || d.InitialScale() != 0.5 || d.TargetScale() != 0.5 {
		t.Fatalf("immutable fields changed")
	}
	if d.ScaleTickDelay() != DefaultScaleTickDelay || d.ShouldSync() || notified != 0 {
		t.Fatalf("immutable data reacted to a mutator")
	}
	if d.Scale() != 0.5 {
		t.Fatalf("immutable reads must bypass modifiers, got %v", d.Scale())
	}
}

func TestIdentityData(t *testing.T) {
	if Identity.Scale() != 1 || !Identity.Immutable() {
		t.Fatalf("expected immutable identity scale")
	}
}

func TestCopyFrom(t *testing.T) {
	src := NewBuilder().Build()
	src.SetScale(2)
	src.SetTargetScale(6)
	src.SetScaleTickDelay(8)
	src.Tick()

	extra := addTo("extra", 0, 1)
	dst := NewBuilder().Build()
	dst.AddModifier(extra)
	dst.CopyFrom(src, false)
	if dst.BaseScale() != src.BaseScale() || dst.PrevScale() != src.PrevScale() ||
		dst.InitialScale() != src.InitialScale() || dst.TargetScale() != src.TargetScale() ||
		dst.ScaleTicks() != src.ScaleTicks() || dst.ScaleTickDelay() != src.ScaleTickDelay() {
		t.Fatalf("copy mismatch")
	}
	if !dst.HasModifier(extra) {
		t.Fatalf("copy must not touch modifiers")
	}
}

func TestEqualUsesFloatBits(t *testing.T) {
	a := NewBuilder().Build()
	b := NewBuilder().Build()
	if !a.Equal(b) {
		t.Fatalf("expected fresh data to be equal")
	}
	a.SetScale(float32(math.Copysign(0, 1)))
	b.SetScale(float32(math.Copysign(0, -1)))
	if a.Equal(b) {
		t.Fatalf("+0 and -0 must differ")
	}
	nan := float32(math.NaN())
	a.SetScale(nan)
	b.SetScale(nan)
	if !a.Equal(b) {
		t.Fatalf("identical NaN bits must compare equal")
	}

	c := NewBuilder().Type(NewType(multiplyBy("double", 0, 2))).Build()
	d := NewBuilder().Build()
	if c.Equal(d) {
		t.Fatalf("effective scale differs, expected inequality")
	}
}
