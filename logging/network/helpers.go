package network

import (
	"context"

	"github.com/MerchantPug/Pehkui/logging"
)

const (
	// EventSyncFlushed is emitted when dirty states are broadcast.
	EventSyncFlushed logging.EventType = "network.sync_flushed"
	// EventFrameRejected is emitted when an inbound frame or message cannot be decoded.
	EventFrameRejected logging.EventType = "network.frame_rejected"
	// EventCommandReceived is emitted when a console command is accepted for the next tick.
	EventCommandReceived logging.EventType = "network.command_received"
)

// SyncFlushedPayload captures the size of a broadcast.
type SyncFlushedPayload struct {
	Frames int `json:"frames"`
	Bytes  int `json:"bytes"`
}

// FrameRejectedPayload captures why inbound data was refused.
type FrameRejectedPayload struct {
	Reason string `json:"reason"`
	Size   int    `json:"size"`
}

// CommandReceivedPayload echoes the accepted console command.
type CommandReceivedPayload struct {
	Operation string  `json:"operation"`
	Value     float32 `json:"value"`
}

// SyncFlushed publishes a debug event for a broadcast batch.
func SyncFlushed(ctx context.Context, pub logging.Publisher, tick uint64, payload SyncFlushedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSyncFlushed,
		Tick:     tick,
		Subject:  logging.System(),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// FrameRejected publishes a warning for malformed inbound data.
func FrameRejected(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, payload FrameRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFrameRejected,
		Tick:     tick,
		Subject:  subject,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// CommandReceived publishes a debug event for an accepted console command.
func CommandReceived(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.EntityRef, scaleType string, payload CommandReceivedPayload, commandID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventCommandReceived,
		Tick:      tick,
		Subject:   subject,
		ScaleType: scaleType,
		Severity:  logging.SeverityDebug,
		Category:  logging.CategoryNetwork,
		Payload:   payload,
		CommandID: commandID,
	})
}
