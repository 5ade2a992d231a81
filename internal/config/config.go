// Package config loads selexp settings.
//
// Precedence (highest to lowest): explicitly set flags, SELEXP_ environment
// variables, the YAML config file, defaults. Nested keys are separated by
// "." in files and flags and by "__" in environment variables, so
// SELEXP_LOG__LEVEL sets log.level and SELEXP_PAGE_SIZE sets page_size.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hanpama/selexp/internal/projection"
)

// EnvPrefix prefixes environment variables read by Load.
const EnvPrefix = "SELEXP_"

// DefaultFile is loaded when present and no file is named explicitly.
const DefaultFile = "selexp.yaml"

type Config struct {
	NullPropagation         bool `koanf:"null_propagation"`
	PageSize                int  `koanf:"page_size"`
	BufferNestedCollections bool `koanf:"buffer_nested_collections"`

	Log    LogConfig    `koanf:"log"`
	Otel   OtelConfig   `koanf:"otel"`
	Output OutputConfig `koanf:"output"`
}

type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `koanf:"level"`
	// Format is text or json.
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint string `koanf:"endpoint"`
	Service  string `koanf:"service"`
}

type OutputConfig struct {
	// Format is json or protojson.
	Format string `koanf:"format"`
	Pretty bool   `koanf:"pretty"`
}

// Settings returns the projection settings.
func (c *Config) Settings() projection.Settings {
	return projection.Settings{
		NullPropagation:         c.NullPropagation,
		PageSize:                c.PageSize,
		BufferNestedCollections: c.BufferNestedCollections,
	}
}

func defaults() map[string]any {
	return map[string]any{
		"null_propagation":          false,
		"page_size":                 0,
		"buffer_nested_collections": false,
		"log.level":                 "warn",
		"log.format":                "text",
		"otel.endpoint":             "",
		"otel.service":              "selexp",
		"output.format":             "json",
		"output.pretty":             false,
	}
}

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"null-propagation": "null_propagation",
	"page-size":        "page_size",
	"buffer-nested":    "buffer_nested_collections",
	"log.level":        "log.level",
	"log.format":       "log.format",
	"otel.endpoint":    "otel.endpoint",
	"otel.service":     "otel.service",
	"out.format":       "output.format",
	"out.pretty":       "output.pretty",
}

// RegisterFlags defines the setting flags on fs. Their defaults are only
// documentation; Load applies a flag only when it was set.
func RegisterFlags(fs *flag.FlagSet) {
	d := defaults()
	fs.Bool("null-propagation", d["null_propagation"].(bool), "Read through null values instead of failing")
	fs.Int("page-size", d["page_size"].(int), "Server page size for expanded collections (0 disables)")
	fs.Bool("buffer-nested", d["buffer_nested_collections"].(bool), "Do not truncate expanded collections to the page size")
	fs.String("log.level", d["log.level"].(string), "Log level: debug, info, warn, error")
	fs.String("log.format", d["log.format"].(string), "Log format: text, json")
	fs.String("otel.endpoint", d["otel.endpoint"].(string), "OTLP collector endpoint")
	fs.String("otel.service", d["otel.service"].(string), "OpenTelemetry service name")
	fs.String("out.format", d["output.format"].(string), "Output format: json, protojson")
	fs.Bool("out.pretty", d["output.pretty"].(bool), "Indent output")
}

// Load reads configuration from path (or DefaultFile when path is empty and
// the file exists), the environment and the flags of fs that were set.
// fs may be nil.
func Load(path string, fs *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if fs != nil {
		set := map[string]any{}
		fs.Visit(func(f *flag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return
			}
			if g, ok := f.Value.(flag.Getter); ok {
				set[key] = g.Get()
			} else {
				set[key] = f.Value.String()
			}
		})
		if err := k.Load(confmap.Provider(set, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns SELEXP_LOG__LEVEL into log.level.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative, got %d", c.PageSize)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	switch c.Output.Format {
	case "json", "protojson":
	default:
		return fmt.Errorf("unknown output.format %q", c.Output.Format)
	}
	return nil
}
