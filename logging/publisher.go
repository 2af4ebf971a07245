// Package logging carries structured simulation events from the scale
// engine and its host adapters to pluggable sinks.
package logging

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a severity name back to its value. The empty string
// selects SeverityInfo.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("logging: unknown severity %q", name)
	}
}

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindEntity  EntityKind = "entity"
	EntityKindSession EntityKind = "session"
	EntityKindSystem  EntityKind = "system"
)

// Event is one structured log record. ScaleType names the scale type the
// event concerns, when there is one.
type Event struct {
	Type      EventType      `json:"type"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Subject   EntityRef      `json:"subject"`
	ScaleType string         `json:"scaleType,omitempty"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	CommandID string         `json:"commandId,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Entity returns a reference to a scaled entity.
func Entity(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindEntity}
}

// Session returns a reference to a connected client session.
func Session(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindSession}
}

// System returns the reference used for process-level events.
func System() EntityRef {
	return EntityRef{Kind: EntityKindSystem}
}

const (
	CategoryScaling   = "scaling"
	CategoryNetwork   = "network"
	CategoryLifecycle = "lifecycle"
	CategorySystem    = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, withDefaultExtra(event, p.fields))
}

// WithFields returns a publisher that adds fields to every event's Extra
// map. Keys already present on the event win.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	return &fieldPublisher{next: p, fields: maps.Clone(fields)}
}

// Clone returns a copy of e that shares no maps with the original.
func (e Event) Clone() Event {
	if e.Extra != nil {
		e.Extra = maps.Clone(e.Extra)
	}
	return e
}

func withDefaultExtra(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = event.Clone()
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}
