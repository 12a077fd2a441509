package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// OutputDir is where saveFile requests write their zips. Empty disables
	// saving.
	OutputDir string `yaml:"output_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig holds the tunables of the topology engine.
type EngineConfig struct {
	IDField           string  `yaml:"id_field"`
	BBoxScale         float64 `yaml:"bbox_scale"`
	GapBufferDistance float64 `yaml:"gap_buffer_distance"`
	GapBufferSegments int     `yaml:"gap_buffer_segments"`
	Precision         int     `yaml:"precision"`
	Workers           int     `yaml:"workers"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Schema   string `yaml:"schema"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			IDField:           "t_id",
			BBoxScale:         1.001,
			GapBufferDistance: 2,
			GapBufferSegments: 3,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "ladm_col",
			SSLMode: "disable",
			Schema:  "ladm_col",
		},
	}
}

// LoadConfig reads the YAML file at path (missing file means defaults), then
// applies .env and environment overrides.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("LADM_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyConfigDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("OUTPUT_DIR", &cfg.Server.OutputDir)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("PG_HOST", &cfg.Database.Host)
	setString("PG_USER", &cfg.Database.User)
	setString("PG_PASSWORD", &cfg.Database.Password)
	setString("PG_DB", &cfg.Database.Name)
	setString("PG_SSLMODE", &cfg.Database.SSLMode)
	setString("PG_SCHEMA", &cfg.Database.Schema)
	if v := os.Getenv("PG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.Enabled = b
		}
	}
	if v := os.Getenv("PG_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = n
		}
	}
}

func applyConfigDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Engine.IDField == "" {
		cfg.Engine.IDField = def.Engine.IDField
	}
	if cfg.Engine.BBoxScale <= 0 {
		cfg.Engine.BBoxScale = def.Engine.BBoxScale
	}
	if cfg.Engine.GapBufferDistance <= 0 {
		cfg.Engine.GapBufferDistance = def.Engine.GapBufferDistance
	}
	if cfg.Engine.GapBufferSegments <= 0 {
		cfg.Engine.GapBufferSegments = def.Engine.GapBufferSegments
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = def.Database.Port
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = def.Database.SSLMode
	}
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = def.Database.Schema
	}
}
