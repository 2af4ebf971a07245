package sinks

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/MerchantPug/Pehkui/logging"
)

func TestConsoleSinkFormatsScaleEvents(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	sink.Write(logging.Event{
		Type:      "scaling.scale_changed",
		Tick:      42,
		Subject:   logging.EntityRef{ID: "steve", Kind: logging.EntityKindEntity},
		ScaleType: "pehkui:height",
		Severity:  logging.SeverityInfo,
		CommandID: "c1",
		Payload:   map[string]float32{"target": 2},
	})
	line := buf.String()
	want := `t=42 INFO scaling.scale_changed entity:steve pehkui:height cmd=c1 {"target":2}`
	if !strings.Contains(line, want) {
		t.Fatalf("expected %q in %q", want, line)
	}
}

func TestMemorySinkFiltersAndWaits(t *testing.T) {
	sink := NewMemorySink()
	sink.Write(logging.Event{Type: "a", Subject: logging.EntityRef{ID: "steve"}})
	sink.Write(logging.Event{Type: "b", Subject: logging.EntityRef{ID: "alex"}})

	if got := len(sink.OfType("a")); got != 1 {
		t.Fatalf("expected one event of type a, got %d", got)
	}
	if got := sink.ForSubject("alex"); len(got) != 1 || got[0].Type != "b" {
		t.Fatalf("unexpected subject filter result %+v", got)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		sink.Write(logging.Event{Type: "a"})
	}()
	if !sink.WaitFor("a", 2, 2*time.Second) {
		t.Fatalf("expected the second event to arrive")
	}
	if sink.WaitFor("c", 1, 10*time.Millisecond) {
		t.Fatalf("no event of type c was written")
	}

	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
