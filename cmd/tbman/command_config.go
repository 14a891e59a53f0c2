package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"tbman/internal/config"

	toml "github.com/pelletier/go-toml/v2"
)

type ConfigCommand struct {
	stdout io.Writer
	stderr io.Writer
}

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
)

type configOutput struct {
	ConfigPath  string                 `json:"config_path" toml:"config_path"`
	Daemon      effectiveDaemonConfig  `json:"daemon" toml:"daemon"`
	Tensorboard effectiveTBConfig      `json:"tensorboard" toml:"tensorboard"`
	Store       effectiveStoreConfig   `json:"store" toml:"store"`
	Logging     effectiveLoggingConfig `json:"logging" toml:"logging"`
}

type effectiveDaemonConfig struct {
	Address string `json:"address" toml:"address"`
	BaseURL string `json:"base_url" toml:"base_url"`
}

type effectiveTBConfig struct {
	Command          string `json:"command" toml:"command"`
	Host             string `json:"host" toml:"host"`
	PortLow          int    `json:"port_low" toml:"port_low"`
	PortHigh         int    `json:"port_high" toml:"port_high"`
	ReadyWaitSeconds int    `json:"ready_wait_seconds" toml:"ready_wait_seconds"`
}

type effectiveStoreConfig struct {
	Backend string `json:"backend" toml:"backend"`
	Path    string `json:"path" toml:"path"`
}

type effectiveLoggingConfig struct {
	Level string `json:"level" toml:"level"`
}

func NewConfigCommand(stdout, stderr io.Writer) *ConfigCommand {
	return &ConfigCommand{
		stdout: stdout,
		stderr: stderr,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	format := fs.String("format", configFormatTOML, "output format: toml or json")
	defaults := fs.Bool("defaults", false, "print built-in defaults instead of the effective config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if !*defaults {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	storePath, err := cfg.ResolveStorePath("")
	if err != nil {
		return err
	}
	low, high := cfg.PortRange()

	out := configOutput{
		ConfigPath: configPath,
		Daemon: effectiveDaemonConfig{
			Address: cfg.DaemonAddress(),
			BaseURL: cfg.DaemonBaseURL(),
		},
		Tensorboard: effectiveTBConfig{
			Command:          cfg.TensorboardCommand(),
			Host:             cfg.TensorboardHost(),
			PortLow:          low,
			PortHigh:         high,
			ReadyWaitSeconds: int(cfg.ReadyWait().Seconds()),
		},
		Store: effectiveStoreConfig{
			Backend: cfg.StoreBackend(),
			Path:    storePath,
		},
		Logging: effectiveLoggingConfig{
			Level: cfg.LogLevel(),
		},
	}

	switch *format {
	case configFormatJSON:
		encoder := json.NewEncoder(c.stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	case configFormatTOML:
		return toml.NewEncoder(c.stdout).Encode(out)
	default:
		return fmt.Errorf("unknown format: %s", *format)
	}
}
