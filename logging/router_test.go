package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/MerchantPug/Pehkui/logging"
	"github.com/MerchantPug/Pehkui/logging/scaling"
	"github.com/MerchantPug/Pehkui/logging/sinks"
)

func fixedClock() logging.Clock {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return logging.ClockFunc(func() time.Time { return at })
}

func newTestRouter(t *testing.T, cfg logging.Config, named ...logging.NamedSink) (*logging.Router, *logging.Metrics) {
	t.Helper()
	metrics := &logging.Metrics{}
	router, err := logging.NewRouter(cfg, named,
		logging.WithClock(fixedClock()),
		logging.WithMetrics(metrics),
		logging.WithFallback(log.New(&bytes.Buffer{}, "", 0)),
	)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router, metrics
}

func TestRouterDeliversAndStamps(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"node": "a"}
	router, metrics := newTestRouter(t, cfg, logging.NamedSink{Name: "memory", Sink: memory})

	scaling.ScaleChanged(context.Background(), router, 7, logging.Entity("e1"), "pehkui:base",
		scaling.ScaleChangedPayload{Operation: "set", Operand: 2, Previous: 1, Target: 2, Delay: 20},
		map[string]any{"node": "override"})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := memory.OfType(scaling.EventScaleChanged)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	event := events[0]
	if event.Tick != 7 || event.Subject.ID != "e1" || event.ScaleType != "pehkui:base" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Category != logging.CategoryScaling {
		t.Fatalf("expected scaling category, got %q", event.Category)
	}
	if !event.Time.Equal(fixedClock().Now()) {
		t.Fatalf("expected clock stamp, got %v", event.Time)
	}
	if event.Extra["node"] != "override" {
		t.Fatalf("event fields must win over router fields, got %v", event.Extra["node"])
	}
	stats := router.Stats()
	if metrics.Value(logging.MetricEventsTotal) != 1 || stats.EventsTotal != 1 {
		t.Fatalf("expected one counted event")
	}
	if stats.ByType[scaling.EventScaleChanged] != 1 {
		t.Fatalf("expected per-type count, got %v", stats.ByType)
	}
}

func TestRouterFiltersSeverity(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, _ := newTestRouter(t, cfg, logging.NamedSink{Name: "memory", Sink: memory})

	ctx := context.Background()
	scaling.TransitionCompleted(ctx, router, 1, logging.Entity("e1"), "", scaling.TransitionCompletedPayload{Scale: 2})
	scaling.ModifierUnresolved(ctx, router, 1, logging.Entity("e1"), "", scaling.ModifierUnresolvedPayload{ID: "x:y", Source: "wire"})
	router.Close(ctx)

	events := memory.Events()
	if len(events) != 1 || events[0].Type != scaling.EventModifierUnresolved {
		t.Fatalf("expected only the warning, got %+v", events)
	}
}

func TestRouterFiltersScaleTypes(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.ScaleTypes = []string{"pehkui:height"}
	router, _ := newTestRouter(t, cfg, logging.NamedSink{Name: "memory", Sink: memory})

	ctx := context.Background()
	payload := scaling.TransitionCompletedPayload{Scale: 2}
	scaling.TransitionCompleted(ctx, router, 1, logging.Entity("e1"), "pehkui:height", payload)
	scaling.TransitionCompleted(ctx, router, 1, logging.Entity("e1"), "pehkui:width", payload)
	scaling.TransitionCompleted(ctx, router, 1, logging.Entity("e1"), "", payload)
	router.Close(ctx)

	events := memory.Events()
	if len(events) != 2 || events[0].ScaleType != "pehkui:height" || events[1].ScaleType != "" {
		t.Fatalf("expected height and untyped events only, got %+v", events)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := logging.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkConsole, "fax", logging.SinkConsole}
	cfg.BufferSize = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{`unknown sink "fax"`, `sink "console" enabled twice`, "buffer size"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestRouterIgnoresUntypedAndLateEvents(t *testing.T) {
	memory := sinks.NewMemorySink()
	router, _ := newTestRouter(t, logging.DefaultConfig(), logging.NamedSink{Name: "memory", Sink: memory})
	ctx := context.Background()
	router.Publish(ctx, logging.Event{})
	router.Close(ctx)
	router.Publish(ctx, logging.Event{Type: "late"})
	if err := router.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(memory.Events()) != 0 {
		t.Fatalf("expected nothing delivered, got %d", len(memory.Events()))
	}
}

func TestRouterRejectsDuplicateSinks(t *testing.T) {
	_, err := logging.NewRouter(logging.DefaultConfig(), []logging.NamedSink{
		{Name: "a", Sink: sinks.NewMemorySink()},
		{Name: "a", Sink: sinks.NewMemorySink()},
	})
	if err == nil {
		t.Fatalf("expected duplicate sink error")
	}
}

type failingSink struct{}

func (failingSink) Write(logging.Event) error { return errors.New("boom") }
func (failingSink) Close(context.Context) error { return errors.New("close boom") }

func TestRouterCloseReportsSinkError(t *testing.T) {
	router, _ := newTestRouter(t, logging.DefaultConfig(), logging.NamedSink{Name: "bad", Sink: failingSink{}})
	if err := router.Close(context.Background()); err == nil || err.Error() != "close boom" {
		t.Fatalf("expected sink close error, got %v", err)
	}
	if router.Sink("bad") == nil || router.Sink("missing") != nil {
		t.Fatalf("unexpected sink lookup result")
	}
}

func TestJSONSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := sinks.NewJSON(&buf, 0)
	event := logging.Event{
		Type:     scaling.EventStateSaved,
		Tick:     3,
		Time:     fixedClock().Now(),
		Subject:  logging.Entity("e1"),
		Severity: logging.SeverityDebug,
		Payload:  scaling.PersistencePayload{Key: "e1/base"},
	}
	if err := sink.Write(event); err != nil {
		t.Fatalf("write: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["type"] != string(scaling.EventStateSaved) || record["severity"] != "debug" {
		t.Fatalf("unexpected record %v", record)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConsoleSinkFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := sinks.NewConsoleSink(&buf, logging.ConsoleConfig{})
	sink.Write(logging.Event{
		Type:      scaling.EventScaleChanged,
		Tick:      9,
		Subject:   logging.Entity("e1"),
		ScaleType: "pehkui:base",
		Severity:  logging.SeverityInfo,
	})
	line := buf.String()
	for _, want := range []string{"t=9 INFO scaling.scale_changed", "entity:e1", "pehkui:base"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkConsole, logging.SinkMemory}
	named, memory, err := sinks.FromConfig(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if len(named) != 2 || memory == nil {
		t.Fatalf("expected console and memory sinks, got %d", len(named))
	}

	cfg.EnabledSinks = []string{"carrier-pigeon"}
	if _, _, err := sinks.FromConfig(cfg, nil); err == nil {
		t.Fatalf("expected unknown sink error")
	}
}

func TestParseSeverity(t *testing.T) {
	for name, want := range map[string]logging.Severity{
		"debug": logging.SeverityDebug,
		"":      logging.SeverityInfo,
		"WARN":  logging.SeverityWarn,
		"error": logging.SeverityError,
	} {
		got, err := logging.ParseSeverity(name)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected unknown severity error")
	}
}

func TestMetricsAddAndStore(t *testing.T) {
	var metrics logging.Metrics
	metrics.TelemetryAdd("frames", 2)
	metrics.TelemetryStore("frames", 5)
	metrics.TelemetryAdd("frames", 3)
	if got := metrics.Snapshot()["frames"]; got != 8 {
		t.Fatalf("unexpected value %d", got)
	}
	var nilMetrics *logging.Metrics
	nilMetrics.TelemetryAdd("ignored", 1)
	if len(nilMetrics.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}
