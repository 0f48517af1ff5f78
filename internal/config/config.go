// Package config loads pagescan settings from a YAML or TOML file, an optional
// environment overlay file and PAGESCAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is read when present; it is not required
	DefaultConfigFile = "pagescan.yaml"

	// EnvConfigEnv selects an overlay such as pagescan.dev.yaml
	EnvConfigEnv = "PAGESCAN_ENV"
)

// Config is the root configuration
type Config struct {
	Camera      CameraConfig      `yaml:"camera" toml:"camera"`
	Capture     CaptureConfig     `yaml:"capture" toml:"capture"`
	Compression CompressionConfig `yaml:"compression" toml:"compression"`
	Store       StoreConfig       `yaml:"store" toml:"store"`
	Identity    IdentityConfig    `yaml:"identity" toml:"identity"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
}

// Load reads path and any overlay selected by PAGESCAN_ENV. A missing file is
// only an error when required is set. The result is not finalized.
func Load(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	base, err := load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
	case err != nil:
		return nil, err
	default:
		cfg = base
	}

	if overlay := overlayPath(path); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}
	return cfg, nil
}

// Finalize applies defaults, loads environment overrides and validates every section
func (c *Config) Finalize() error {
	if err := c.Camera.Finalize(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := c.Capture.Finalize(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Compression.Finalize(); err != nil {
		return fmt.Errorf("compression: %w", err)
	}
	if err := c.Store.Finalize(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Identity.Finalize(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Merge applies values from overlay that differ from zero values
func (c *Config) Merge(overlay *Config) {
	c.Camera.Merge(&overlay.Camera)
	c.Capture.Merge(&overlay.Capture)
	c.Compression.Merge(&overlay.Compression)
	c.Store.Merge(&overlay.Store)
	c.Identity.Merge(&overlay.Identity)
	c.Server.Merge(&overlay.Server)
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func overlayPath(path string) string {
	env := os.Getenv(EnvConfigEnv)
	if env == "" {
		return ""
	}
	ext := filepath.Ext(path)
	overlay := strings.TrimSuffix(path, ext) + "." + env + ext
	if _, err := os.Stat(overlay); err == nil {
		return overlay
	}
	return ""
}
