package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/MerchantPug/Pehkui/logging"
)

// ConsoleSink writes one human-readable line per event, for example
//
//	t=42 INFO scaling.scale_changed entity:steve pehkui:height cmd=c1 {"target":2}
type ConsoleSink struct {
	logger *log.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSink{logger: log.New(w, cfg.Prefix, log.LstdFlags)}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Print(formatLine(event))
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func formatLine(event logging.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%d %s %s", event.Tick, strings.ToUpper(event.Severity.String()), event.Type)
	if subject := formatSubject(event.Subject); subject != "" {
		b.WriteString(" " + subject)
	}
	if event.ScaleType != "" {
		b.WriteString(" " + event.ScaleType)
	}
	if event.CommandID != "" {
		b.WriteString(" cmd=" + event.CommandID)
	}
	if event.Payload != nil {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			fmt.Fprintf(&b, " %v", event.Payload)
		} else {
			b.WriteString(" ")
			b.Write(data)
		}
	}
	return b.String()
}

func formatSubject(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}
