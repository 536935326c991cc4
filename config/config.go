/*
Package config loads server configuration.

PURPOSE:
  One place for everything cmd/server needs: listen port, storage backend,
  fallback billing constants, an optional catalog file, staffing options
  and logging.

PRECEDENCE (lowest to highest):
  1. Default()
  2. TOML file (config.toml)
  3. .env file, loaded into the process environment
  4. Environment variables (ADDITION_ENGINE_*, DATABASE_URL)
  5. Command-line flags (applied by cmd/server)

EXAMPLE config.toml:
  [server]
  port = 8080

  [database]
  driver = "sqlite"
  path = "./data/additions.db"

  [billing]
  base_units_per_day = 480
  unit_price = "11.2"

  [log]
  level = "info"
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/warp/addition-engine/revenue"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Billing  BillingConfig  `toml:"billing"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Staffing StaffingConfig `toml:"staffing"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"` // sqlite
	URL    string `toml:"url"`  // postgres
}

// BillingConfig holds fallbacks for facilities without stored constants.
// Zero values leave the built-in defaults in place.
type BillingConfig struct {
	BaseUnitsPerDay     int64  `toml:"base_units_per_day"`
	UnitPrice           string `toml:"unit_price"`
	RegionGrade         int    `toml:"region_grade"`
	Capacity            int    `toml:"capacity"`
	StandardWeeklyHours string `toml:"standard_weekly_hours"`
}

type CatalogConfig struct {
	File string `toml:"file"` // YAML or JSON; empty = standard catalog
}

type StaffingConfig struct {
	EnforceRequirements bool `toml:"enforce_requirements"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// LoadInfo reports where values came from.
type LoadInfo struct {
	FileFound     bool
	PortSpecified bool
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "./data/additions.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (a missing file leaves defaults), then applies the
// environment and validates.
func Load(path string) (*Config, LoadInfo, error) {
	info := LoadInfo{}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, info, fmt.Errorf("failed to read config: %w", err)
		default:
			info.FileFound = true
			info.PortSpecified = portSpecified(data)
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, info, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, info, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

func portSpecified(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	server, ok := raw["server"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = server["port"]
	return ok
}

// LoadDotEnv loads .env files into the environment. Missing files are
// skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides values from environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("ADDITION_ENGINE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ADDITION_ENGINE_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ADDITION_ENGINE_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("ADDITION_ENGINE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("ADDITION_ENGINE_CATALOG"); v != "" {
		c.Catalog.File = v
	}
	if v := os.Getenv("ADDITION_ENGINE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url (or DATABASE_URL) is required for postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if _, err := c.Billing.Constants(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Constants converts the billing section. It returns nil when the section
// is empty so facilities fall back to the built-in defaults.
func (b BillingConfig) Constants() (*revenue.BillingConstants, error) {
	if b == (BillingConfig{}) {
		return nil, nil
	}
	c := &revenue.BillingConstants{
		BaseUnitsPerDay: b.BaseUnitsPerDay,
		RegionGrade:     b.RegionGrade,
		Capacity:        b.Capacity,
	}
	var err error
	if b.UnitPrice != "" {
		if c.UnitPrice, err = decimal.NewFromString(b.UnitPrice); err != nil {
			return nil, fmt.Errorf("invalid billing.unit_price %q: %w", b.UnitPrice, err)
		}
	}
	if b.StandardWeeklyHours != "" {
		if c.StandardWeeklyHours, err = decimal.NewFromString(b.StandardWeeklyHours); err != nil {
			return nil, fmt.Errorf("invalid billing.standard_weekly_hours %q: %w", b.StandardWeeklyHours, err)
		}
	}
	return c, nil
}

// Logger builds a slog logger writing to w.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
