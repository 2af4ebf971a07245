// Package net assembles the HTTP surface of the scale server.
package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"time"

	"github.com/MerchantPug/Pehkui/internal/hub"
	"github.com/MerchantPug/Pehkui/internal/net/proto"
	"github.com/MerchantPug/Pehkui/internal/net/ws"
	"github.com/MerchantPug/Pehkui/internal/observability"
	"github.com/MerchantPug/Pehkui/internal/sim"
	"github.com/MerchantPug/Pehkui/internal/telemetry"
	"github.com/MerchantPug/Pehkui/logging"
)

// maxCommandBody bounds POST /command payloads.
const maxCommandBody = 4096

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Publisher     logging.Publisher
	Metrics       *logging.Metrics
	Router        *logging.Router
	TickRate      int
	Observability observability.Config
}

func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Status     string              `json:"status"`
			ServerTime int64               `json:"serverTime"`
			Tick       uint64              `json:"tick"`
			TickRate   int                 `json:"tickRate"`
			Sessions   int                 `json:"sessions"`
			Pending    int                 `json:"pendingCommands"`
			Queue      sim.BufferStats     `json:"commandQueue"`
			States     []hub.View          `json:"states"`
			Telemetry  map[string]uint64   `json:"telemetry"`
			Logging    logging.RouterStats `json:"logging"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       h.Tick(),
			TickRate:   cfg.TickRate,
			Sessions:   h.Sessions(),
			Pending:    h.Pending(),
			Queue:      h.QueueStats(),
			States:     h.Views(),
			Telemetry:  cfg.Metrics.Snapshot(),
			Logging:    cfg.Router.Stats(),
		}
		writeJSON(w, logger, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/command", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody+1))
		if err != nil || len(body) > maxCommandBody {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		msg, err := proto.DecodeClientMessage(body)
		if err != nil {
			writeReject(w, logger, nethttp.StatusBadRequest, proto.CommandReject{Reason: proto.RejectInvalidCommand})
			return
		}
		cmd, ok, reason := proto.ClientCommand(msg)
		if !ok {
			writeReject(w, logger, nethttp.StatusBadRequest, proto.CommandReject{ID: msg.ID, Reason: reason})
			return
		}
		if err := h.Enqueue(cmd); err != nil {
			status := nethttp.StatusNotFound
			if errors.Is(err, hub.ErrQueueFull) {
				status = nethttp.StatusServiceUnavailable
			}
			writeReject(w, logger, status, proto.CommandReject{ID: msg.ID, Reason: ws.RejectReason(err)})
			return
		}
		data, err := proto.EncodeCommandAck(proto.CommandAck{ID: msg.ID, Tick: h.Tick() + 1})
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		writeRaw(w, nethttp.StatusAccepted, data)
	})

	handler := ws.NewHandler(h, ws.HandlerConfig{
		Logger:    logger,
		Publisher: cfg.Publisher,
		TickRate:  cfg.TickRate,
	})
	mux.HandleFunc("/ws", handler.Handle)

	cfg.Observability.Register(mux)

	return mux
}

func writeReject(w nethttp.ResponseWriter, logger telemetry.Logger, status int, msg proto.CommandReject) {
	data, err := proto.EncodeCommandReject(msg)
	if err != nil {
		logger.Printf("failed to encode reject: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w nethttp.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	nethttp.Error(w, message, status)
}
