package config

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	return writeNamed(t, t.TempDir(), "newton.yaml", contents)
}

func writeNamed(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
realtime:
  base_url: wss://crm.example.test
  heartbeat_interval: 15s
  reconnect:
    max_attempts: 3
    initial_delay: 500ms
session:
  store: memory
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Realtime.BaseURL != "wss://crm.example.test" {
		t.Errorf("BaseURL = %q", cfg.Realtime.BaseURL)
	}
	if cfg.Realtime.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v", cfg.Realtime.HeartbeatInterval)
	}
	if cfg.Realtime.Reconnect.MaxAttempts != 3 || cfg.Realtime.Reconnect.InitialDelay != 500*time.Millisecond {
		t.Errorf("Reconnect = %+v", cfg.Realtime.Reconnect)
	}
	if cfg.Realtime.Reconnect.MaxDelay != DefaultMaxDelay {
		t.Errorf("MaxDelay default = %v", cfg.Realtime.Reconnect.MaxDelay)
	}
	if cfg.Realtime.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout default = %v", cfg.Realtime.HandshakeTimeout)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Version != CurrentVersion || cfg.Realtime.BaseURL != DefaultBaseURL {
		t.Errorf("Default() = %+v", cfg)
	}
	if cfg.Session.Store != StoreSQLite || !strings.HasSuffix(cfg.Session.Path, "sessions.db") {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Realtime.Reconnect.MaxAttempts != 5 || cfg.Realtime.HeartbeatInterval != 30*time.Second {
		t.Errorf("Realtime = %+v", cfg.Realtime)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
realtime:
  base_url: wss://crm.example.test
  extra: true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		contains string
	}{
		{
			name:     "bad scheme",
			contents: "realtime:\n  base_url: ftp://crm.example.test",
			contains: "base_url",
		},
		{
			name:     "redis without url",
			contents: "session:\n  store: redis",
			contains: "redis_url",
		},
		{
			name:     "unknown store",
			contents: "session:\n  store: etcd",
			contains: "store",
		},
		{
			name:     "bad format",
			contents: "logging:\n  format: xml",
			contains: "format",
		},
		{
			name:     "bad level",
			contents: "logging:\n  level: loud",
			contains: "logging.level",
		},
		{
			name:     "wrong type",
			contents: "realtime:\n  read_limit: lots",
			contains: "read_limit",
		},
		{
			name:     "delays inverted",
			contents: "realtime:\n  reconnect:\n    initial_delay: 10s\n    max_delay: 1s",
			contains: "max_delay",
		},
		{
			name:     "newer version",
			contents: "version: 99",
			contains: "newer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.contents))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("expected %q in error, got %v", tt.contains, err)
			}
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("NEWTON_TEST_REDIS", "redis://cache:6379/2")
	path := writeConfig(t, `
session:
  store: redis
  redis_url: ${NEWTON_TEST_REDIS}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.RedisURL != "redis://cache:6379/2" {
		t.Errorf("RedisURL = %q", cfg.Session.RedisURL)
	}
}

func TestLoadIncludeAndJSON5(t *testing.T) {
	dir := t.TempDir()
	writeNamed(t, dir, "base.json5", `{
  // shared realtime settings
  realtime: {base_url: "wss://base.example.test", heartbeat_interval: "10s"},
  logging: {level: "warn"},
}`)
	path := writeNamed(t, dir, "newton.yaml", `
$include: base.json5
logging:
  level: debug
session:
  store: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Realtime.BaseURL != "wss://base.example.test" || cfg.Realtime.HeartbeatInterval != 10*time.Second {
		t.Errorf("Realtime = %+v", cfg.Realtime)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want including file to win", cfg.Logging.Level)
	}
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeNamed(t, dir, "a.yaml", "$include: b.yaml")
	path := writeNamed(t, dir, "b.yaml", "$include: a.yaml")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Realtime.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.Realtime.BaseURL)
	}

	dir := t.TempDir()
	path := writeNamed(t, dir, "newton.yaml", "$include: gone.yaml")
	if _, err := LoadOrDefault(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing include should fail, got %v", err)
	}
}

func TestDefaultPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/newton.yaml")
	if DefaultPath() != "/etc/newton.yaml" {
		t.Errorf("DefaultPath() = %q", DefaultPath())
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if !strings.Contains(string(data), "heartbeat_interval") {
		t.Error("schema should use yaml field names")
	}
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\nsession:\n  store: memory")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var levels []string
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- watch(ctx, path, logger, 10*time.Millisecond, func(cfg *Config) {
			mu.Lock()
			levels = append(levels, cfg.Logging.Level)
			mu.Unlock()
		})
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		// Rewrite until the watcher is registered and picks it up.
		if err := os.WriteFile(path, []byte("logging:\n  level: debug\nsession:\n  store: memory"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		n := len(levels)
		mu.Unlock()
		if n > 0 {
			break
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 || levels[0] != "debug" {
		t.Fatalf("reloaded levels = %v", levels)
	}
}

func TestExpandHome(t *testing.T) {
	home := homeDir()
	tests := map[string]string{
		"~":              home,
		"~/newton/x.yml": filepath.Join(home, "newton", "x.yml"),
		"/etc/newton":    "/etc/newton",
		"rel/~/path":     "rel/~/path",
	}
	for in, want := range tests {
		if got := expandHome(in); got != want {
			t.Errorf("expandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIncludeCycleReportsChain(t *testing.T) {
	dir := t.TempDir()
	writeNamed(t, dir, "one.yaml", "$include: two.yaml")
	path := writeNamed(t, dir, "two.yaml", "$include: one.yaml")
	_, err := LoadRaw(path)
	if err == nil || !strings.Contains(err.Error(), "two.yaml -> ") {
		t.Fatalf("expected cycle chain in error, got %v", err)
	}
}
