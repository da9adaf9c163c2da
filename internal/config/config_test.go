package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.TerrainDir != "configs/terrain" {
		t.Fatalf("terrain dir = %q", cfg.TerrainDir)
	}
	if cfg.ExportDir != "exports" {
		t.Fatalf("export dir = %q", cfg.ExportDir)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("metrics addr = %q, want disabled", cfg.MetricsAddr)
	}
	if cfg.SearchTimeout != Duration(10*time.Second) {
		t.Fatalf("search timeout = %s", time.Duration(cfg.SearchTimeout))
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	body := `terrain_dir: /data/terrain
metrics_addr: ":9090"
search_timeout: 2s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TerrainDir != "/data/terrain" {
		t.Fatalf("terrain dir = %q", cfg.TerrainDir)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("metrics addr = %q", cfg.MetricsAddr)
	}
	if cfg.SearchTimeout != Duration(2*time.Second) {
		t.Fatalf("search timeout = %s", time.Duration(cfg.SearchTimeout))
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	// Keys absent from the file keep their defaults.
	if cfg.ExportDir != "exports" {
		t.Fatalf("export dir = %q, want default", cfg.ExportDir)
	}
	if cfg.Log.Format != "text" {
		t.Fatalf("log format = %q, want default", cfg.Log.Format)
	}
}

func TestLoadGuardsNonPositiveTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("search_timeout: 0s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SearchTimeout != Default().SearchTimeout {
		t.Fatalf("search timeout = %s, want default", time.Duration(cfg.SearchTimeout))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("terrain_dir: [\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
