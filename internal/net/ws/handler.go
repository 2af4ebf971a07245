// Package ws serves scale sync sessions over websockets.
package ws

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"github.com/MerchantPug/Pehkui/internal/hub"
	"github.com/MerchantPug/Pehkui/internal/net/proto"
	"github.com/MerchantPug/Pehkui/internal/telemetry"
	"github.com/MerchantPug/Pehkui/logging"
	loggingLifecycle "github.com/MerchantPug/Pehkui/logging/lifecycle"
	loggingNetwork "github.com/MerchantPug/Pehkui/logging/network"
)

// maxMessageBytes bounds inbound client messages.
const maxMessageBytes = 4096

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	TickRate  int
}

// Handler upgrades connections, greets them with a snapshot and feeds their
// commands into the hub.
type Handler struct {
	hub       *hub.Hub
	logger    telemetry.Logger
	publisher logging.Publisher
	tickRate  int
	upgrader  websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:       h,
		logger:    logger,
		publisher: publisher,
		tickRate:  cfg.TickRate,
		upgrader:  upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	h.Serve(r.Context(), conn)
}

// Serve runs a session on an upgraded connection until it closes.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	var snapshotFrames int
	sub, err := h.hub.Subscribe(conn, func(sessionID string, frames int) ([]byte, error) {
		snapshotFrames = frames
		return proto.EncodeHello(proto.Hello{
			Session:  sessionID,
			Tick:     h.hub.Tick(),
			TickRate: h.tickRate,
			Frames:   frames,
			Easings:  h.easings(),
		})
	})
	if err != nil {
		h.logger.Printf("failed to send snapshot: %v", err)
		return
	}
	session := logging.Session(sub.ID())
	events := logging.WithFields(h.publisher, map[string]any{"session": sub.ID()})
	loggingLifecycle.SessionJoined(ctx, h.publisher, h.hub.Tick(), session, loggingLifecycle.SessionJoinedPayload{SnapshotFrames: snapshotFrames})

	reason := "closed"
	defer func() {
		h.hub.Disconnect(sub.ID())
		loggingLifecycle.SessionLeft(context.WithoutCancel(ctx), h.publisher, h.hub.Tick(), session, loggingLifecycle.SessionLeftPayload{Reason: reason})
	}()

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			return
		}
		if kind != websocket.TextMessage {
			loggingNetwork.FrameRejected(ctx, h.publisher, h.hub.Tick(), session, loggingNetwork.FrameRejectedPayload{Reason: "unexpected binary message", Size: len(payload)}, nil)
			continue
		}
		if !h.handleMessage(ctx, sub, session, events, payload) {
			reason = "write failed"
			return
		}
	}
}

// handleMessage processes one client message. It returns false when the
// reply could not be written.
func (h *Handler) handleMessage(ctx context.Context, sub *hub.Subscriber, session logging.EntityRef, events logging.Publisher, payload []byte) bool {
	msg, err := proto.DecodeClientMessage(payload)
	if err != nil {
		loggingNetwork.FrameRejected(ctx, h.publisher, h.hub.Tick(), session, loggingNetwork.FrameRejectedPayload{Reason: "malformed message", Size: len(payload)}, map[string]any{"error": err.Error()})
		return h.reject(sub, proto.CommandReject{Reason: proto.RejectInvalidCommand})
	}

	cmd, ok, reason := proto.ClientCommand(msg)
	if !ok {
		return h.reject(sub, proto.CommandReject{ID: msg.ID, Reason: reason})
	}
	loggingNetwork.CommandReceived(ctx, events, h.hub.Tick(), logging.Entity(msg.Entity), msg.ScaleType, loggingNetwork.CommandReceivedPayload{
		Operation: string(cmd.Type),
		Value:     msg.Value,
	}, msg.ID)

	if err := h.hub.Enqueue(cmd); err != nil {
		return h.reject(sub, proto.CommandReject{ID: msg.ID, Reason: RejectReason(err)})
	}
	return h.ack(sub, proto.CommandAck{ID: msg.ID, Tick: h.hub.Tick() + 1})
}

// RejectReason maps hub errors onto client reject reasons.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, hub.ErrQueueFull):
		return proto.RejectQueueFull
	case errors.Is(err, hub.ErrUnknownType):
		return proto.RejectUnknownType
	case errors.Is(err, hub.ErrUnknownState), errors.Is(err, hub.ErrInvalidEntity):
		return proto.RejectUnknownEntity
	default:
		return proto.RejectInvalidCommand
	}
}

func (h *Handler) reject(sub *hub.Subscriber, msg proto.CommandReject) bool {
	data, err := proto.EncodeCommandReject(msg)
	return h.write(sub, data, err)
}

func (h *Handler) ack(sub *hub.Subscriber, msg proto.CommandAck) bool {
	data, err := proto.EncodeCommandAck(msg)
	return h.write(sub, data, err)
}

func (h *Handler) write(sub *hub.Subscriber, data []byte, err error) bool {
	if err != nil {
		h.logger.Printf("failed to encode reply for %s: %v", sub.ID(), err)
		return true
	}
	return sub.WriteMessage(websocket.TextMessage, data) == nil
}

func (h *Handler) easings() []string {
	ids := h.hub.Registries().Easings.IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
