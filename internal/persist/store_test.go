package persist

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

var heightID = registry.NewID("pehkui", "height")

func sampleDocument() (*scale.Data, *scale.Registries) {
	regs := scale.NewRegistries()
	extra := regs.RegisterModifier(scale.NewModifier(registry.NewID("test", "extra"), 1, nil))
	d := scale.NewBuilder().Build()
	d.SetScale(2)
	d.SetScaleTickDelay(5)
	d.SetTargetScale(3)
	d.Tick()
	d.AddModifier(extra)
	return d, regs
}

func TestStoreRoundTripMemory(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	src, regs := sampleDocument()

	if err := store.Save("Player 1", heightID, src.ToDocument(regs.Modifiers)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if backend.Len() != 1 {
		t.Fatalf("expected one stored property, got %d", backend.Len())
	}
	doc, ok, err := store.Load("Player 1", heightID)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	dst := scale.NewBuilder().Build()
	dst.FromDocument(doc, regs.Modifiers)
	if !dst.Equal(src) {
		t.Fatalf("round trip mismatch")
	}
}

func TestStoreMissingDocument(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	_, ok, err := store.Load("nobody", heightID)
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestStoreDegraded(t *testing.T) {
	store := NewStore(nil)
	if !store.Degraded() {
		t.Fatalf("expected degraded store")
	}
	if err := store.Save("e1", heightID, scale.Document{}); err != nil {
		t.Fatalf("degraded save must succeed: %v", err)
	}
	if _, ok, err := store.Load("e1", heightID); ok || err != nil {
		t.Fatalf("degraded load must miss")
	}
}

func TestKey(t *testing.T) {
	object, prop, err := Key("Player 1", heightID)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if object != "_50layer_201" || prop != "pehkui_3aheight" {
		t.Fatalf("unexpected key %q %q", object, prop)
	}
	if _, _, err := Key("", heightID); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if _, _, err := Key("e1", registry.ID{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestKeyIsInjective(t *testing.T) {
	pairs := [][2]string{
		{"Alex", "alex"},
		{"a.b", "a_b"},
		{"steve.one", "steve_one"},
		{"a_2eb", "a.b"},
	}
	for _, pair := range pairs {
		left, _, _ := Key(pair[0], heightID)
		right, _, _ := Key(pair[1], heightID)
		if left == right {
			t.Fatalf("%q and %q share object key %q", pair[0], pair[1], left)
		}
	}
	_, width, _ := Key("e1", registry.NewID("pehkui", "width"))
	_, other, _ := Key("e1", registry.NewID("pehkui_", "width"))
	if width == other {
		t.Fatalf("distinct scale types share property %q", width)
	}
}

func TestStoreKeepsSimilarEntitiesApart(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	two, five := float32(2), float32(5)
	if err := store.Save("steve.one", heightID, scale.Document{Scale: &two}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save("steve_one", heightID, scale.Document{Scale: &five}); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, ok, err := store.Load("steve.one", heightID)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if *doc.Scale != 2 {
		t.Fatalf("expected steve.one to keep scale 2, got %v", *doc.Scale)
	}
}

func TestStoreCorruptDocument(t *testing.T) {
	backend := NewMemoryBackend()
	object, prop, _ := Key("e1", heightID)
	backend.SaveObjectProp(object, prop, []byte("scale: [not a float"))
	if _, _, err := NewStore(backend).Load("e1", heightID); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStoreGdataRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
	store, err := Open(fmt.Sprintf("pehkui_persist_test_%d", time.Now().UnixNano()))
	if err != nil {
		t.Skipf("gdata storage unavailable: %v", err)
	}
	src, regs := sampleDocument()
	if err := store.Save("e1", heightID, src.ToDocument(regs.Modifiers)); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, ok, err := store.Load("e1", heightID)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	dst := scale.NewBuilder().Build()
	dst.FromDocument(doc, regs.Modifiers)
	if !dst.Equal(src) {
		t.Fatalf("gdata round trip mismatch")
	}
}
