// Package telemetry holds the narrow logging and metrics interfaces the
// simulation components depend on.
package telemetry

import (
	"context"
	"fmt"
	"log"

	"github.com/MerchantPug/Pehkui/logging"
)

// Metric keys recorded by the hub and transport.
const (
	MetricTicks            = "scale_ticks_total"
	MetricTrackedStates    = "scale_tracked_states"
	MetricCommandsApplied  = "scale_commands_applied_total"
	MetricCommandsRejected = "scale_commands_rejected_total"
	MetricCommandsDropped  = "scale_commands_dropped_total"
	MetricSyncFrames       = "scale_sync_frames_total"
	MetricSyncBytes        = "scale_sync_bytes_total"
	MetricSessions         = "scale_sessions"
	MetricSaves            = "scale_saves_total"
	MetricSaveErrors       = "scale_save_errors_total"
	MetricScaleUpdates     = "scale_updates_total"
)

// Logger is the printf-style logging the components need.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// EventTypeMessage tags free-form messages routed through a publisher.
const EventTypeMessage logging.EventType = "system.message"

// PublisherLogger routes Printf calls to pub as system events at severity.
func PublisherLogger(pub logging.Publisher, severity logging.Severity) Logger {
	if pub == nil {
		return LoggerFunc(nil)
	}
	return LoggerFunc(func(format string, args ...any) {
		pub.Publish(context.Background(), logging.Event{
			Type:     EventTypeMessage,
			Subject:  logging.System(),
			Severity: severity,
			Category: logging.CategorySystem,
			Payload:  map[string]string{"message": fmt.Sprintf(format, args...)},
		})
	})
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics adapts the logging metrics registry into the Metrics interface.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return &metricsAdapter{metrics: metrics}
}

type metricsAdapter struct {
	metrics *logging.Metrics
}

func (m *metricsAdapter) Add(key string, delta uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryAdd(key, delta)
}

func (m *metricsAdapter) Store(key string, value uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryStore(key, value)
}

// NopMetrics discards every update.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}
