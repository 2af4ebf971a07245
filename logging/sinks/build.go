package sinks

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MerchantPug/Pehkui/logging"
)

// FromConfig instantiates the sinks enabled in cfg. Console output goes to
// stdout. A memory sink, when enabled, is returned so callers can inspect
// it.
func FromConfig(cfg logging.Config, stdout io.Writer) ([]logging.NamedSink, *MemorySink, error) {
	var (
		named  []logging.NamedSink
		memory *MemorySink
	)
	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: NewConsoleSink(stdout, cfg.Console)})
		case logging.SinkJSON:
			w, err := openJSONTarget(cfg.JSON.FilePath, stdout)
			if err != nil {
				return nil, nil, err
			}
			named = append(named, logging.NamedSink{Name: name, Sink: NewJSON(w, cfg.JSON.FlushInterval)})
		case logging.SinkMemory:
			memory = NewMemorySink()
			named = append(named, logging.NamedSink{Name: name, Sink: memory})
		default:
			return nil, nil, fmt.Errorf("logging: unknown sink %q", name)
		}
	}
	return named, memory, nil
}

func openJSONTarget(path string, stdout io.Writer) (io.Writer, error) {
	if path == "" {
		return stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
