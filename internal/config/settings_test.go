package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.DaemonAddress(); got != "127.0.0.1:8093" {
		t.Fatalf("unexpected daemon address: %q", got)
	}
	if got := cfg.DaemonBaseURL(); got != "http://127.0.0.1:8093" {
		t.Fatalf("unexpected base url: %q", got)
	}
	if got := cfg.TensorboardCommand(); got != "tensorboard" {
		t.Fatalf("unexpected command: %q", got)
	}
	if got := cfg.TensorboardHost(); got != "localhost" {
		t.Fatalf("unexpected host: %q", got)
	}
	low, high := cfg.PortRange()
	if low != 8000 || high != 9000 {
		t.Fatalf("unexpected port range: [%d, %d)", low, high)
	}
	if got := cfg.ReadyWait(); got != 3*time.Second {
		t.Fatalf("unexpected ready wait: %v", got)
	}
	if got := cfg.StoreBackend(); got != "file" {
		t.Fatalf("unexpected backend: %q", got)
	}
	if got := cfg.LogLevel(); got != "info" {
		t.Fatalf("unexpected log level: %q", got)
	}
}

func TestLoadReadsTOML(t *testing.T) {
	raw := `
[daemon]
address = "127.0.0.1:9999"

[tensorboard]
command = "/opt/tb/bin/tensorboard"
host = "0.0.0.0"
port_low = 18000
port_high = 18100
ready_wait_seconds = 10

[store]
backend = "bbolt"

[logging]
level = "debug"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.DaemonAddress(); got != "127.0.0.1:9999" {
		t.Fatalf("unexpected daemon address: %q", got)
	}
	if got := cfg.TensorboardCommand(); got != "/opt/tb/bin/tensorboard" {
		t.Fatalf("unexpected command: %q", got)
	}
	if got := cfg.TensorboardHost(); got != "0.0.0.0" {
		t.Fatalf("unexpected host: %q", got)
	}
	low, high := cfg.PortRange()
	if low != 18000 || high != 18100 {
		t.Fatalf("unexpected port range: [%d, %d)", low, high)
	}
	if got := cfg.ReadyWait(); got != 10*time.Second {
		t.Fatalf("unexpected ready wait: %v", got)
	}
	if got := cfg.StoreBackend(); got != "bbolt" {
		t.Fatalf("unexpected backend: %q", got)
	}
	if got := cfg.LogLevel(); got != "debug" {
		t.Fatalf("unexpected log level: %q", got)
	}
}

func TestLoadRejectsBrokenTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[daemon\naddress="), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadFromPath(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDaemonAddressStripsScheme(t *testing.T) {
	cfg := Default()
	cfg.Daemon.Address = "http://127.0.0.1:8100/"
	if got := cfg.DaemonAddress(); got != "127.0.0.1:8100" {
		t.Fatalf("unexpected daemon address: %q", got)
	}
}

func TestPortRangeFallsBackWhenInverted(t *testing.T) {
	cfg := Default()
	cfg.Tensorboard.PortLow = 9000
	cfg.Tensorboard.PortHigh = 8000
	low, high := cfg.PortRange()
	if low != 9000 || high <= low {
		t.Fatalf("unexpected range: [%d, %d)", low, high)
	}
}

func TestResolveStorePath(t *testing.T) {
	cfg := Default()

	override := filepath.Join(t.TempDir(), "custom.json")
	path, err := cfg.ResolveStorePath(override)
	if err != nil {
		t.Fatalf("resolve override: %v", err)
	}
	if path != override {
		t.Fatalf("expected override to win, got %q", path)
	}

	cfg.Store.Path = filepath.Join(t.TempDir(), "configured.json")
	path, err = cfg.ResolveStorePath("")
	if err != nil {
		t.Fatalf("resolve configured: %v", err)
	}
	if path != cfg.Store.Path {
		t.Fatalf("expected configured path, got %q", path)
	}

	cfg.Store.Path = ""
	path, err = cfg.ResolveStorePath("")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if filepath.Base(path) != "sessions.json" {
		t.Fatalf("expected sessions.json default, got %q", path)
	}

	cfg.Store.Backend = "bbolt"
	path, err = cfg.ResolveStorePath("")
	if err != nil {
		t.Fatalf("resolve bbolt default: %v", err)
	}
	if filepath.Base(path) != "sessions.db" {
		t.Fatalf("expected sessions.db default, got %q", path)
	}
}

func TestPathsLiveUnderDataDir(t *testing.T) {
	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	for name, fn := range map[string]func() (string, error){
		"sessions.json": SessionsPath,
		"sessions.db":   SessionsDBPath,
		"token":         TokenPath,
		"config.toml":   ConfigPath,
		"daemon.log":    DaemonLogPath,
	} {
		path, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if filepath.Dir(path) != dataDir {
			t.Fatalf("%s not under data dir: %q", name, path)
		}
		if filepath.Base(path) != name {
			t.Fatalf("unexpected file name: %q", path)
		}
	}
}
