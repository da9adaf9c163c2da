// Package config loads server configuration from a YAML file with
// defaults suitable for local use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the mission-router server configuration.
type Config struct {
	// TerrainDir holds the fixture files (dem.json, landcover.json,
	// roads.geojson, obstacles.geojson).
	TerrainDir string `yaml:"terrain_dir"`
	// ExportDir receives briefing artifacts.
	ExportDir string `yaml:"export_dir"`
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
	// SearchTimeout bounds a single route generation call.
	SearchTimeout Duration `yaml:"search_timeout"`

	Log LogConfig `yaml:"log"`
}

// Duration parses YAML scalars like "2s" or "500ms", which yaml.v3 does
// not do for time.Duration itself.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LogConfig mirrors the logging package's options.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		TerrainDir:    "configs/terrain",
		ExportDir:     "exports",
		MetricsAddr:   "",
		SearchTimeout: Duration(10 * time.Second),
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path and overlays it on the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = Default().SearchTimeout
	}
	return cfg, nil
}
