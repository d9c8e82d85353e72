package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sgbus/internal/ingest"
	"sgbus/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sgbus.yaml")
	content := "db_path: " + filepath.Join(dir, "sgbus.db") + "\nlog_level: error\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "sgbus dev") {
		t.Errorf("output = %q, want prefix %q", out, "sgbus dev")
	}
}

func TestStatus_EmptyStore(t *testing.T) {
	out, err := execute(t, "status", "-c", writeConfig(t))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"RESOURCE", "bus_stops", "bus_routes", "never"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestStatus_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgbus.ini")
	if err := os.WriteFile(path, []byte("port=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "status", "-c", path); err == nil {
		t.Fatal("expected error for unsupported config extension")
	}
}

func TestIngest_UnknownResource(t *testing.T) {
	_, err := execute(t, "ingest", "-c", writeConfig(t), "--resource", "bus_arrivals")
	if err == nil || !strings.Contains(err.Error(), "bus_arrivals") {
		t.Fatalf("err = %v, want unknown resource error", err)
	}
}

func TestPrintStatus(t *testing.T) {
	updated := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	snaps := []ingest.Snapshot{
		{
			ResourceStatus: storage.ResourceStatus{Resource: storage.BusStops, State: storage.StateIdle},
			Rows:           5123,
			LastUpdated:    &updated,
		},
		{
			ResourceStatus: storage.ResourceStatus{Resource: storage.BusRoutes, State: storage.StateFailed, LastError: "guardrail hit"},
			Stale:          true,
		},
	}

	var buf bytes.Buffer
	if err := printStatus(&buf, snaps); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "2026-05-04T03:02:01Z") || !strings.Contains(lines[1], "5123") {
		t.Errorf("bus_stops line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "failed") || !strings.Contains(lines[2], "guardrail hit") {
		t.Errorf("bus_routes line = %q", lines[2])
	}
}
