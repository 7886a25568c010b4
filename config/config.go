// Package config holds run options and loads their defaults from a YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chaos-io/removebg-square/canvas"
)

const (
	AppName  = "removebg-square"
	fileName = "config.yaml"
)

// Config is the file layout; every field is a default for the matching run flag.
type Config struct {
	InputDir     string         `yaml:"input_dir"`
	OutputDir    string         `yaml:"output_dir"`
	BadDir       *string        `yaml:"bad_dir"`
	Preset       string         `yaml:"preset"`
	OutSize      string         `yaml:"out_size"`
	Margins      canvas.Margins `yaml:"margins"`
	Background   string         `yaml:"background"`
	RemoveSize   string         `yaml:"remove_size"`
	APIBaseURL   string         `yaml:"api_base_url"`
	SkipExisting bool           `yaml:"skip_existing"`
	Report       string         `yaml:"report"`
	RawConverter RawConfig      `yaml:"raw_converter"`
	XMP          XMPConfig      `yaml:"xmp"`
	LogLevel     string         `yaml:"log_level"`
}

type RawConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type XMPConfig struct {
	Tool    string `yaml:"tool"`
	Sidecar bool   `yaml:"sidecar"`
	Disable bool   `yaml:"disable"`
}

// Default returns the built-in defaults.
func Default() *Config {
	cfg := &Config{
		Margins: canvas.UniformMargins(canvas.DefaultMargin),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.InputDir == "" {
		c.InputDir = "input"
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.Background == "" {
		c.Background = "transparent"
	}
	if c.RemoveSize == "" {
		c.RemoveSize = "auto"
	}
	if c.RawConverter.Command == "" {
		c.RawConverter.Command = "dcraw"
		if len(c.RawConverter.Args) == 0 {
			c.RawConverter.Args = []string{"-c", "-w", "-W", "-T"}
		}
	}
	if c.XMP.Tool == "" {
		c.XMP.Tool = AppName
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// BadDirOr returns the configured bad folder, or <output>/bad when unset.
// An explicit empty string disables the bad folder.
func (c *Config) BadDirOr(outputDir string) string {
	if c.BadDir != nil {
		return *c.BadDir
	}
	return filepath.Join(outputDir, "bad")
}

// DefaultPath is $XDG_CONFIG_HOME/removebg-square/config.yaml (or the OS equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, fileName)
}

// Load reads path. With explicit=false a missing file yields the defaults.
func Load(path string, explicit bool) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{Margins: canvas.UniformMargins(canvas.DefaultMargin)}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
