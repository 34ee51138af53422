// Package config holds the settings of the pdfedit tool.
//
// Values start from defaults, are overridden by PDFEDIT_* environment
// variables, then by an optional YAML file. Command line flags are applied
// last by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	DefaultRenderScale   = 1.5
	DefaultOutputName    = "edited.pdf"
	DefaultLogLevel      = "info"
	DefaultLayoutWorkers = 4
)

const (
	EnvRenderScale   = "PDFEDIT_RENDER_SCALE"
	EnvOutput        = "PDFEDIT_OUTPUT"
	EnvLogLevel      = "PDFEDIT_LOG_LEVEL"
	EnvLayoutWorkers = "PDFEDIT_LAYOUT_WORKERS"
)

// ErrInvalidScale is returned by Validate for a non-positive render scale
var ErrInvalidScale = errors.New("render scale must be positive")

type Config struct {
	RenderScale float64 `yaml:"render_scale"`
	// OutputName is the file name used when OutputPath is empty
	OutputName string `yaml:"output_name"`
	// OutputPath is a local path or a gs://bucket/object URL
	OutputPath    string `yaml:"output_path"`
	LogLevel      string `yaml:"log_level"`
	LayoutWorkers int    `yaml:"layout_workers"`
}

// GetEnv reads an environment variable or returns fallback
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		RenderScale:   DefaultRenderScale,
		OutputName:    DefaultOutputName,
		LogLevel:      DefaultLogLevel,
		LayoutWorkers: DefaultLayoutWorkers,
	}
}

// FromEnv returns the defaults overridden by the environment
func FromEnv() (Config, error) {
	cfg := Default()

	if v := GetEnv(EnvRenderScale, ""); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", EnvRenderScale, err)
		}
		cfg.RenderScale = scale
	}
	if v := GetEnv(EnvOutput, ""); v != "" {
		cfg.OutputPath = v
	}
	cfg.LogLevel = GetEnv(EnvLogLevel, cfg.LogLevel)
	if v := GetEnv(EnvLayoutWorkers, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", EnvLayoutWorkers, err)
		}
		cfg.LayoutWorkers = n
	}

	return cfg, nil
}

// Load reads the environment and, when path is not empty, the YAML file at
// path. Keys missing from the file keep their earlier values. The result is
// not validated, callers apply their own overrides and then call Validate.
func Load(path string) (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return cfg, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.RenderScale <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidScale, c.RenderScale)
	}
	if c.LayoutWorkers < 1 {
		return fmt.Errorf("layout workers must be at least 1, got %d", c.LayoutWorkers)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Output returns where the edited document goes. An empty OutputPath puts
// OutputName next to the input file.
func (c Config) Output(input string) string {
	if c.OutputPath != "" {
		return c.OutputPath
	}
	name := c.OutputName
	if name == "" {
		name = DefaultOutputName
	}
	if input == "" {
		return name
	}
	if object, ok := strings.CutPrefix(input, "gs://"); ok {
		return "gs://" + path.Join(path.Dir(object), name)
	}
	return filepath.Join(filepath.Dir(input), name)
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
