package logging

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Sink names understood by the sink factory.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkMemory  = "memory"
)

// KnownSinks lists every sink name in the order operators see them.
var KnownSinks = []string{SinkConsole, SinkJSON, SinkMemory}

// Config selects sinks and decides which scale events reach them.
type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// ScaleTypes limits events that name a scale type to these identifiers.
	// Events without a scale type always pass. Empty means every type.
	ScaleTypes []string
	// Fields are stamped into every event's Extra, e.g. the server address.
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	// Prefix starts each line, so several servers can share a terminal.
	Prefix string
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

// Validate reports unknown or repeated sink names and a negative buffer.
func (c Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.EnabledSinks))
	for _, name := range c.EnabledSinks {
		switch {
		case !slices.Contains(KnownSinks, name):
			errs = append(errs, fmt.Errorf("logging: unknown sink %q", name))
		case seen[name]:
			errs = append(errs, fmt.Errorf("logging: sink %q enabled twice", name))
		}
		seen[name] = true
	}
	if c.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("logging: buffer size must not be negative, got %d", c.BufferSize))
	}
	return errors.Join(errs...)
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

// Allows reports whether the router forwards event.
func (c Config) Allows(event Event) bool {
	if event.Severity < c.MinimumSeverity {
		return false
	}
	if event.ScaleType == "" || len(c.ScaleTypes) == 0 {
		return true
	}
	return slices.Contains(c.ScaleTypes, event.ScaleType)
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	return maps.Clone(c.Fields)
}
