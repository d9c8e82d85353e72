package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.CheckInterval != 24*time.Hour {
		t.Errorf("CheckInterval = %v, want 24h", cfg.CheckInterval)
	}
	if cfg.RefreshInterval != 720*time.Hour {
		t.Errorf("RefreshInterval = %v, want 720h", cfg.RefreshInterval)
	}
	if cfg.BusStopsMaxPages != 0 || cfg.BusRoutesMaxPages != 0 {
		t.Errorf("guardrails = %d/%d, want unbounded (0)", cfg.BusStopsMaxPages, cfg.BusRoutesMaxPages)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "sgbus.yaml", `
port: 9000
db_path: /tmp/x.db
bus_stops_max_pages: 20
check_interval: 6h
log_format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q, want /tmp/x.db", cfg.DBPath)
	}
	if cfg.BusStopsMaxPages != 20 {
		t.Errorf("BusStopsMaxPages = %d, want 20", cfg.BusStopsMaxPages)
	}
	if cfg.CheckInterval != 6*time.Hour {
		t.Errorf("CheckInterval = %v, want 6h", cfg.CheckInterval)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	// untouched fields keep defaults
	if cfg.RefreshInterval != 720*time.Hour {
		t.Errorf("RefreshInterval = %v, want default 720h", cfg.RefreshInterval)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "sgbus.toml", `
port = 9100
bus_routes_max_pages = 150
refresh_interval = "48h"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.BusRoutesMaxPages != 150 {
		t.Errorf("BusRoutesMaxPages = %d, want 150", cfg.BusRoutesMaxPages)
	}
	if cfg.RefreshInterval != 48*time.Hour {
		t.Errorf("RefreshInterval = %v, want 48h", cfg.RefreshInterval)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "sgbus.yaml", "port: 9000\n")
	t.Setenv("SGBUS_PORT", "9200")
	t.Setenv("DATAMALL_ACCOUNT_KEY", "secret")
	t.Setenv("BUS_STOPS_MAX_PAGES", "12")
	t.Setenv("SGBUS_LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("Port = %d, want 9200 from env", cfg.Port)
	}
	if cfg.DataMallAPIKey != "secret" {
		t.Errorf("DataMallAPIKey = %q, want secret", cfg.DataMallAPIKey)
	}
	if cfg.BusStopsMaxPages != 12 {
		t.Errorf("BusStopsMaxPages = %d, want 12", cfg.BusStopsMaxPages)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("SGBUS_PORT", "not-a-number")
	t.Setenv("SGBUS_CHECK_INTERVAL", "daily")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want fallback 8080", cfg.Port)
	}
	if cfg.CheckInterval != 24*time.Hour {
		t.Errorf("CheckInterval = %v, want fallback 24h", cfg.CheckInterval)
	}
}

func TestLoad_MissingAPIKeyIsNotAnError(t *testing.T) {
	t.Setenv("DATAMALL_ACCOUNT_KEY", "")
	if _, err := Load(""); err != nil {
		t.Errorf("Load without API key should succeed, got %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad port", "a.yaml", "port: 70000\n"},
		{"bad log level", "b.yaml", "log_level: loud\n"},
		{"bad base url", "c.yaml", "datamall_base_url: not a url\n"},
		{"zero check interval", "d.toml", "check_interval = \"0s\"\n"},
		{"unsupported extension", "e.json", "{}"},
		{"malformed yaml", "f.yaml", "port: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%s) should fail", tt.name)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}
