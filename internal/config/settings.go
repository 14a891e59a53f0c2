package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultDaemonAddress = "127.0.0.1:8093"

const (
	defaultTensorboardCommand = "tensorboard"
	defaultTensorboardHost    = "localhost"
	defaultPortLow            = 8000
	defaultPortHigh           = 9000
)

type Config struct {
	Daemon      DaemonConfig      `toml:"daemon"`
	Tensorboard TensorboardConfig `toml:"tensorboard"`
	Store       StoreConfig       `toml:"store"`
	Logging     LoggingConfig     `toml:"logging"`
}

type DaemonConfig struct {
	Address string `toml:"address"`
}

type TensorboardConfig struct {
	Command string `toml:"command"`
	Host    string `toml:"host"`
	// Port range TensorBoard servers are allocated from; low inclusive,
	// high exclusive.
	PortLow  int `toml:"port_low"`
	PortHigh int `toml:"port_high"`
	// Seconds to wait for a freshly spawned server before declaring it
	// healthy or failed.
	ReadyWaitSeconds int `toml:"ready_wait_seconds"`
}

type StoreConfig struct {
	// Backend selects "file" (hand-editable JSON, the default) or "bbolt".
	Backend string `toml:"backend"`
	// Path overrides the default session file or database location.
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Daemon: DaemonConfig{Address: defaultDaemonAddress},
		Tensorboard: TensorboardConfig{
			Command:  defaultTensorboardCommand,
			Host:     defaultTensorboardHost,
			PortLow:  defaultPortLow,
			PortHigh: defaultPortHigh,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func (c Config) DaemonAddress() string {
	addr := strings.TrimSpace(c.Daemon.Address)
	if addr == "" {
		return defaultDaemonAddress
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultDaemonAddress
	}
	return addr
}

func (c Config) DaemonBaseURL() string {
	return "http://" + c.DaemonAddress()
}

func (c Config) TensorboardCommand() string {
	command := strings.TrimSpace(c.Tensorboard.Command)
	if command == "" {
		return defaultTensorboardCommand
	}
	return command
}

func (c Config) TensorboardHost() string {
	host := strings.TrimSpace(c.Tensorboard.Host)
	if host == "" {
		return defaultTensorboardHost
	}
	return host
}

// PortRange returns the configured allocation range, falling back to the
// defaults when unset or inverted.
func (c Config) PortRange() (low, high int) {
	low = c.Tensorboard.PortLow
	high = c.Tensorboard.PortHigh
	if low <= 0 {
		low = defaultPortLow
	}
	if high <= low {
		high = defaultPortHigh
	}
	if high <= low {
		high = low + 1000
	}
	return low, high
}

// ReadyWait is how long a freshly spawned TensorBoard gets to come up.
func (c Config) ReadyWait() time.Duration {
	if c.Tensorboard.ReadyWaitSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Tensorboard.ReadyWaitSeconds) * time.Second
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) StoreBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if backend == "" {
		return "file"
	}
	return backend
}

// ResolveStorePath returns the session store location: the explicit
// override when given, otherwise the per-user default for the backend.
func (c Config) ResolveStorePath(override string) (string, error) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = strings.TrimSpace(c.Store.Path)
	}
	if path != "" {
		return expandPath(path)
	}
	if c.StoreBackend() == "bbolt" {
		return SessionsDBPath()
	}
	return SessionsPath()
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}
