package registry

import (
	"sync"
	"testing"
)

type entry struct{ name string }

func TestParseID(t *testing.T) {
	cases := []struct {
		text string
		want ID
		ok   bool
	}{
		{text: "pehkui:base", want: ID{Namespace: "pehkui", Path: "base"}, ok: true},
		{text: "height", want: ID{Namespace: DefaultNamespace, Path: "height"}, ok: true},
		{text: ":width", want: ID{Namespace: DefaultNamespace, Path: "width"}, ok: true},
		{text: "pehkui:limbs/arm_left", want: ID{Namespace: "pehkui", Path: "limbs/arm_left"}, ok: true},
		{text: "Pehkui:base", ok: false},
		{text: "pehkui:", ok: false},
		{text: "", ok: false},
		{text: "pe/hkui:base", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseID(tc.text)
		if ok != tc.ok {
			t.Fatalf("ParseID(%q) ok=%v, want %v", tc.text, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseID(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestIDTextRoundTrip(t *testing.T) {
	id := NewID("pehkui", "motion")
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded ID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != id {
		t.Fatalf("expected %v, got %v", id, decoded)
	}
	if err := decoded.UnmarshalText([]byte("BAD ID")); err == nil {
		t.Fatalf("expected malformed identifier to fail")
	}
}

func TestMustParseID(t *testing.T) {
	if got := MustParseID("pehkui:motion"); got != NewID("pehkui", "motion") {
		t.Fatalf("unexpected id %v", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for malformed identifier")
		}
	}()
	MustParseID("BAD ID")
}

func TestFamilyFirstRegistrationWins(t *testing.T) {
	fam := NewFamily[*entry](NewID("test", "entries"), NewID("test", "fallback"))
	first := &entry{name: "first"}
	second := &entry{name: "second"}
	id := NewID("test", "thing")

	if got := fam.Register(id, first); got != first {
		t.Fatalf("expected first registration to return entry")
	}
	if got := fam.Register(id, second); got != first {
		t.Fatalf("expected existing entry to win, got %q", got.name)
	}
	if _, ok := fam.IDOf(second); ok {
		t.Fatalf("rejected entry must not gain an inverse binding")
	}
	if got, ok := fam.IDOf(first); !ok || got != id {
		t.Fatalf("expected inverse lookup to return %v, got %v (%v)", id, got, ok)
	}
}

func TestFamilyKeepsExistingInverseBinding(t *testing.T) {
	fam := NewFamily[*entry](NewID("test", "entries"), NewID("test", "fallback"))
	shared := &entry{name: "shared"}
	a := NewID("test", "a")
	b := NewID("test", "b")
	fam.Register(a, shared)
	fam.Register(b, shared)

	if _, ok := fam.Lookup(b); ok {
		t.Fatalf("expected second id to stay unbound")
	}
	if got, _ := fam.IDOf(shared); got != a {
		t.Fatalf("expected inverse to remain %v, got %v", a, got)
	}
}

func TestFamilyDefaults(t *testing.T) {
	fallbackID := NewID("test", "fallback")
	fam := NewFamily[*entry](NewID("test", "entries"), fallbackID)
	if got := fam.LookupOrDefault(NewID("test", "missing")); got != nil {
		t.Fatalf("expected zero value before default registration")
	}
	fallback := fam.Register(fallbackID, &entry{name: "fallback"})
	if fam.DefaultID() != fallbackID {
		t.Fatalf("unexpected default id %v", fam.DefaultID())
	}
	if got, ok := fam.Default(); !ok || got != fallback {
		t.Fatalf("expected registered default entry")
	}
	if got := fam.LookupOrDefault(NewID("test", "missing")); got != fallback {
		t.Fatalf("expected fallback for missing id")
	}
}

func TestFamiliesAreIndependent(t *testing.T) {
	id := NewID("pehkui", "base")
	types := NewFamily[*entry](NewID("pehkui", "scale_types"), id)
	mods := NewFamily[*entry](NewID("pehkui", "scale_modifiers"), id)
	typeEntry := types.Register(id, &entry{name: "type"})
	modEntry := mods.Register(id, &entry{name: "modifier"})
	if typeEntry == modEntry {
		t.Fatalf("expected separate entries per family")
	}
	if got, _ := types.Lookup(id); got.name != "type" {
		t.Fatalf("unexpected type entry %q", got.name)
	}
	if got, _ := mods.Lookup(id); got.name != "modifier" {
		t.Fatalf("unexpected modifier entry %q", got.name)
	}
}

func TestFamilyIDsSorted(t *testing.T) {
	fam := NewFamily[*entry](NewID("test", "entries"), NewID("test", "a"))
	for _, path := range []string{"zeta", "alpha", "mid"} {
		fam.Register(NewID("test", path), &entry{name: path})
	}
	ids := fam.IDs()
	if len(ids) != 3 || fam.Len() != 3 {
		t.Fatalf("expected three ids, got %d", len(ids))
	}
	if ids[0].Path != "alpha" || ids[1].Path != "mid" || ids[2].Path != "zeta" {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestFamilyConcurrentRegistration(t *testing.T) {
	fam := NewFamily[*entry](NewID("test", "entries"), NewID("test", "shared"))
	id := NewID("test", "shared")
	results := make([]*entry, 32)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fam.Register(id, &entry{name: "candidate"})
		}(i)
	}
	wg.Wait()

	winner, ok := fam.Lookup(id)
	if !ok {
		t.Fatalf("expected an entry to be registered")
	}
	for i, got := range results {
		if got != winner {
			t.Fatalf("registration %d returned a losing entry", i)
		}
	}
}
