package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("PG_ENABLED", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.Server.Addr != def.Server.Addr {
		t.Errorf("expected addr %s, got %s", def.Server.Addr, cfg.Server.Addr)
	}
	if cfg.Engine != def.Engine {
		t.Errorf("expected engine %+v, got %+v", def.Engine, cfg.Engine)
	}
	if cfg.Database.Enabled {
		t.Error("expected the database disabled by default")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9000"
engine:
  id_field: fid
  bbox_scale: 0
  workers: 4
database:
  port: 6543
  schema: ""
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("PG_ENABLED", "true")
	t.Setenv("PG_SCHEMA", "ladm")
	t.Setenv("PG_PORT", "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"addr", cfg.Server.Addr, ":9000"},
		{"id field", cfg.Engine.IDField, "fid"},
		{"bbox scale falls back", cfg.Engine.BBoxScale, 1.001},
		{"workers", cfg.Engine.Workers, 4},
		{"port", cfg.Database.Port, 6543},
		{"schema from env", cfg.Database.Schema, "ladm"},
		{"enabled from env", cfg.Database.Enabled, true},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, tt.got)
		}
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      DatabaseConfig
		expected string
	}{
		{
			name:     "with password",
			cfg:      DatabaseConfig{Host: "db", Port: 5432, User: "ladm", Password: "p@ss", Name: "ladm_col", SSLMode: "disable"},
			expected: "postgres://ladm:p%40ss@db:5432/ladm_col?sslmode=disable",
		},
		{
			name:     "without password",
			cfg:      DatabaseConfig{Host: "db", Port: 5433, User: "ladm", Name: "ladm_col", SSLMode: "require"},
			expected: "postgres://ladm@db:5433/ladm_col?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPostgresDSN(tt.cfg); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "layer", "plots")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected info to be filtered")
	}
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"layer":"plots"`) {
		t.Errorf("expected a json warning, got %s", out)
	}
}
