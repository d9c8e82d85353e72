package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Port   int    `yaml:"port" toml:"port" validate:"gt=0,lte=65535"`
	DBPath string `yaml:"db_path" toml:"db_path" validate:"required"`

	DataMallBaseURL string `yaml:"datamall_base_url" toml:"datamall_base_url" validate:"required,url"`
	DataMallAPIKey  string `yaml:"datamall_api_key" toml:"datamall_api_key"` // checked at first fetch, not here

	// Page guardrails; zero or negative means unbounded.
	BusStopsMaxPages  int `yaml:"bus_stops_max_pages" toml:"bus_stops_max_pages"`
	BusRoutesMaxPages int `yaml:"bus_routes_max_pages" toml:"bus_routes_max_pages"`

	CheckInterval   time.Duration `yaml:"check_interval" toml:"check_interval" validate:"gt=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" toml:"refresh_interval" validate:"gt=0"`

	LogLevel  string `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" toml:"log_format" validate:"oneof=text json"`
}

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		Port:            8080,
		DBPath:          "./sgbus.db",
		DataMallBaseURL: "https://datamall2.mytransport.sg/ltaodataservice",
		CheckInterval:   24 * time.Hour,
		RefreshInterval: 30 * 24 * time.Hour,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds the configuration from defaults, then the optional file at
// path, then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("SGBUS_PORT", c.Port)
	c.DBPath = envStr("SGBUS_DB_PATH", c.DBPath)
	c.DataMallBaseURL = envStr("SGBUS_DATAMALL_URL", c.DataMallBaseURL)
	c.DataMallAPIKey = envStr("DATAMALL_ACCOUNT_KEY", c.DataMallAPIKey)
	c.BusStopsMaxPages = envInt("BUS_STOPS_MAX_PAGES", c.BusStopsMaxPages)
	c.BusRoutesMaxPages = envInt("BUS_ROUTES_MAX_PAGES", c.BusRoutesMaxPages)
	c.CheckInterval = envDuration("SGBUS_CHECK_INTERVAL", c.CheckInterval)
	c.RefreshInterval = envDuration("SGBUS_REFRESH_INTERVAL", c.RefreshInterval)
	c.LogLevel = strings.ToLower(envStr("SGBUS_LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(envStr("SGBUS_LOG_FORMAT", c.LogFormat))
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
