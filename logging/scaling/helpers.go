// Package scaling publishes events about scale state changes.
package scaling

import (
	"context"

	"github.com/MerchantPug/Pehkui/logging"
)

const (
	// EventScaleChanged is emitted when a command retargets a scale.
	EventScaleChanged logging.EventType = "scaling.scale_changed"
	// EventTransitionCompleted is emitted on the tick a transition reaches its target.
	EventTransitionCompleted logging.EventType = "scaling.transition_completed"
	// EventModifierUnresolved is emitted when a decoded modifier id has no registry entry.
	EventModifierUnresolved logging.EventType = "scaling.modifier_unresolved"
	// EventCommandRejected is emitted when a scale command cannot be applied.
	EventCommandRejected logging.EventType = "scaling.command_rejected"
	// EventStateSaved is emitted after a state document is persisted.
	EventStateSaved logging.EventType = "scaling.state_saved"
	// EventStateLoaded is emitted after a persisted document is applied.
	EventStateLoaded logging.EventType = "scaling.state_loaded"
	// EventStateAveraged is emitted when several states are merged into one.
	EventStateAveraged logging.EventType = "scaling.state_averaged"
)

// ScaleChangedPayload describes a command applied to a state.
type ScaleChangedPayload struct {
	Operation string  `json:"operation"`
	Operand   float32 `json:"operand"`
	Previous  float32 `json:"previous"`
	Target    float32 `json:"target"`
	Delay     int32   `json:"delay"`
}

// TransitionCompletedPayload records where a transition settled.
type TransitionCompletedPayload struct {
	Scale float32 `json:"scale"`
	Ticks int32   `json:"ticks"`
}

// ModifierUnresolvedPayload names the identifier that was skipped.
type ModifierUnresolvedPayload struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// CommandRejectedPayload explains why a command was not applied.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// PersistencePayload identifies the stored document.
type PersistencePayload struct {
	Key string `json:"key"`
}

// StateAveragedPayload summarises a merge.
type StateAveragedPayload struct {
	Sources int     `json:"sources"`
	Scale   float32 `json:"scale"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryScaling
	pub.Publish(ctx, event)
}

// ScaleChanged publishes an info event for an applied command.
func ScaleChanged(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload ScaleChangedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:      EventScaleChanged,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityInfo,
		Payload:   payload,
		Extra:     extra,
	})
}

// TransitionCompleted publishes a debug event when a transition settles.
func TransitionCompleted(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload TransitionCompletedPayload) {
	publish(ctx, pub, logging.Event{
		Type:      EventTransitionCompleted,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityDebug,
		Payload:   payload,
	})
}

// ModifierUnresolved publishes a warning for a skipped modifier id.
func ModifierUnresolved(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload ModifierUnresolvedPayload) {
	publish(ctx, pub, logging.Event{
		Type:      EventModifierUnresolved,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityWarn,
		Payload:   payload,
	})
}

// CommandRejected publishes a warning for a command that failed.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload CommandRejectedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:      EventCommandRejected,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityWarn,
		Payload:   payload,
		Extra:     extra,
	})
}

// StateSaved publishes a debug event after persisting a document.
func StateSaved(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload PersistencePayload) {
	publish(ctx, pub, logging.Event{
		Type:      EventStateSaved,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityDebug,
		Payload:   payload,
	})
}

// StateLoaded publishes an info event after applying a stored document.
func StateLoaded(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload PersistencePayload) {
	publish(ctx, pub, logging.Event{
		Type:      EventStateLoaded,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityInfo,
		Payload:   payload,
	})
}

// StateAveraged publishes an info event for a merge.
func StateAveraged(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload StateAveragedPayload) {
	publish(ctx, pub, logging.Event{
		Type:      EventStateAveraged,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityInfo,
		Payload:   payload,
	})
}
