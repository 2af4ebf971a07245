// Package config loads the server configuration: embedded defaults merged
// with an optional YAML file and environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MerchantPug/Pehkui/logging"
	"github.com/MerchantPug/Pehkui/registry"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Environment variables that override file values.
const (
	EnvListenAddr = "SCALE_LISTEN_ADDR"
	EnvTickRate   = "SCALE_TICK_RATE"
	EnvLogLevel   = "SCALE_LOG_LEVEL"
	EnvPprof      = "SCALE_ENABLE_PPROF"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full server configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Persistence   PersistenceConfig   `yaml:"persistence" json:"persistence"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Catalog       CatalogConfig       `yaml:"catalog" json:"catalog"`
}

type ServerConfig struct {
	ListenAddr       string `yaml:"listen_addr" json:"listen_addr" jsonschema:"description=TCP address the HTTP server binds"`
	TickRate         int    `yaml:"tick_rate" json:"tick_rate" jsonschema:"minimum=1,description=Simulation ticks per second"`
	CommandCapacity  int    `yaml:"command_capacity" json:"command_capacity" jsonschema:"minimum=1"`
	DefaultTickDelay int32  `yaml:"default_tick_delay" json:"default_tick_delay" jsonschema:"description=Transition length for newly tracked states"`
	AutoTrack        bool   `yaml:"auto_track" json:"auto_track" jsonschema:"description=Track states on their first command"`
}

type LoggingConfig struct {
	MinSeverity   string            `yaml:"min_severity" json:"min_severity" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Sinks         []string          `yaml:"sinks" json:"sinks"`
	JSONPath      string            `yaml:"json_path" json:"json_path"`
	BufferSize    int               `yaml:"buffer_size" json:"buffer_size"`
	ConsolePrefix string            `yaml:"console_prefix" json:"console_prefix"`
	ScaleTypes    []string          `yaml:"scale_types" json:"scale_types" jsonschema:"description=Only log events for these scale types; empty logs all"`
	Fields        map[string]string `yaml:"fields" json:"fields" jsonschema:"description=Static fields added to every event"`
}

type PersistenceConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	AppName       string `yaml:"app_name" json:"app_name"`
	AutosaveTicks int    `yaml:"autosave_ticks" json:"autosave_ticks" jsonschema:"description=Ticks between autosaves; zero disables"`
}

type ObservabilityConfig struct {
	EnablePprof bool `yaml:"enable_pprof" json:"enable_pprof"`
}

// CatalogConfig declares registry entries created at startup.
type CatalogConfig struct {
	Modifiers []ModifierEntry `yaml:"modifiers" json:"modifiers"`
	Types     []TypeEntry     `yaml:"types" json:"types"`
	Easings   []EasingEntry   `yaml:"easings" json:"easings"`
}

// ModifierEntry declares either an operation modifier (operation and
// operand) or a type multiplier (source).
type ModifierEntry struct {
	ID        string  `yaml:"id" json:"id" jsonschema:"required"`
	Priority  int     `yaml:"priority" json:"priority"`
	Operation string  `yaml:"operation,omitempty" json:"operation,omitempty" jsonschema:"enum=set,enum=add,enum=subtract,enum=multiply,enum=divide,enum=power"`
	Operand   float32 `yaml:"operand,omitempty" json:"operand,omitempty"`
	Source    string  `yaml:"source,omitempty" json:"source,omitempty" jsonschema:"description=Scale type whose value multiplies this one"`
}

type TypeEntry struct {
	ID       string   `yaml:"id" json:"id" jsonschema:"required"`
	Defaults []string `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

type EasingEntry struct {
	ID       string `yaml:"id" json:"id" jsonschema:"required"`
	Function string `yaml:"function" json:"function"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Parse merges data over the embedded defaults. Keys absent from data keep
// their default values; catalog lists present in data replace the defaults.
func Parse(data []byte) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Load reads path and merges it over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// ApplyEnv overlays environment overrides using getenv, typically
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if raw := getenv(EnvListenAddr); raw != "" {
		c.Server.ListenAddr = raw
	}
	if raw := getenv(EnvTickRate); raw != "" {
		rate, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvTickRate, raw, err)
		}
		c.Server.TickRate = rate
	}
	if raw := getenv(EnvLogLevel); raw != "" {
		c.Logging.MinSeverity = raw
	}
	if raw := getenv(EnvPprof); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvPprof, raw, err)
		}
		c.Observability.EnablePprof = enabled
	}
	return nil
}

// Validate checks value ranges. Catalog consistency is checked by
// Bootstrap.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("server.tick_rate must be positive, got %d", c.Server.TickRate))
	}
	if c.Server.CommandCapacity <= 0 {
		errs = append(errs, fmt.Errorf("server.command_capacity must be positive, got %d", c.Server.CommandCapacity))
	}
	if c.Server.DefaultTickDelay < 0 {
		errs = append(errs, fmt.Errorf("server.default_tick_delay must not be negative, got %d", c.Server.DefaultTickDelay))
	}
	if c.Persistence.AutosaveTicks < 0 {
		errs = append(errs, fmt.Errorf("persistence.autosave_ticks must not be negative, got %d", c.Persistence.AutosaveTicks))
	}
	if c.Persistence.Enabled && c.Persistence.AppName == "" {
		errs = append(errs, errors.New("persistence.app_name is required when persistence is enabled"))
	}
	if routerCfg, err := c.Logging.RouterConfig(); err != nil {
		errs = append(errs, err)
	} else if err := routerCfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, text := range c.Logging.ScaleTypes {
		if _, ok := registry.ParseID(text); !ok {
			errs = append(errs, fmt.Errorf("logging.scale_types: invalid identifier %q", text))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// TickInterval converts the tick rate into a ticker period.
func (c ServerConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 20
	}
	return time.Second / time.Duration(c.TickRate)
}

// RouterConfig converts the logging section into router settings.
func (c LoggingConfig) RouterConfig() (logging.Config, error) {
	cfg := logging.DefaultConfig()
	severity, err := logging.ParseSeverity(c.MinSeverity)
	if err != nil {
		return cfg, err
	}
	cfg.MinimumSeverity = severity
	if len(c.Sinks) > 0 {
		cfg.EnabledSinks = append([]string(nil), c.Sinks...)
	}
	if c.BufferSize != 0 {
		cfg.BufferSize = c.BufferSize
	}
	cfg.JSON.FilePath = c.JSONPath
	cfg.Console.Prefix = c.ConsolePrefix
	for _, text := range c.ScaleTypes {
		// Events carry canonical identifiers.
		if id, ok := registry.ParseID(text); ok {
			cfg.ScaleTypes = append(cfg.ScaleTypes, id.String())
		}
	}
	if len(c.Fields) > 0 {
		cfg.Fields = make(map[string]any, len(c.Fields))
		for k, v := range c.Fields {
			cfg.Fields[k] = v
		}
	}
	return cfg, nil
}
