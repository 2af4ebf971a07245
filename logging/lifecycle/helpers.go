package lifecycle

import (
	"context"

	"github.com/MerchantPug/Pehkui/logging"
)

const (
	// EventSessionJoined is emitted when a client subscribes to sync frames.
	EventSessionJoined logging.EventType = "lifecycle.session_joined"
	// EventSessionLeft is emitted when a client connection ends.
	EventSessionLeft logging.EventType = "lifecycle.session_left"
	// EventEntityTracked is emitted when the hub starts simulating a state.
	EventEntityTracked logging.EventType = "lifecycle.entity_tracked"
	// EventEntityReleased is emitted when the hub stops simulating a state.
	EventEntityReleased logging.EventType = "lifecycle.entity_released"
)

// SessionJoinedPayload captures what the new session received on connect.
type SessionJoinedPayload struct {
	SnapshotFrames int `json:"snapshotFrames"`
}

// SessionLeftPayload captures the reason a session ended.
type SessionLeftPayload struct {
	Reason string `json:"reason"`
}

// EntityPayload identifies a tracked state.
type EntityPayload struct {
	Restored bool `json:"restored"`
}

// SessionJoined publishes a session join event.
func SessionJoined(ctx context.Context, pub logging.Publisher, tick uint64, session logging.EntityRef, payload SessionJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionJoined,
		Tick:     tick,
		Subject:  session,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SessionLeft publishes a session disconnect event.
func SessionLeft(ctx context.Context, pub logging.Publisher, tick uint64, session logging.EntityRef, payload SessionLeftPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionLeft,
		Tick:     tick,
		Subject:  session,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// EntityTracked publishes an event when a state joins the simulation.
func EntityTracked(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef, scaleType string, payload EntityPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventEntityTracked,
		Tick:      tick,
		Subject:   entity,
		ScaleType: scaleType,
		Severity:  logging.SeverityDebug,
		Category:  logging.CategoryLifecycle,
		Payload:   payload,
	})
}

// EntityReleased publishes an event when a state leaves the simulation.
func EntityReleased(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef, scaleType string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventEntityReleased,
		Tick:      tick,
		Subject:   entity,
		ScaleType: scaleType,
		Severity:  logging.SeverityDebug,
		Category:  logging.CategoryLifecycle,
	})
}
