// Package config holds the interpreter settings shared by the bfi CLI and the
// brainfuck mode of the containerd shim.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"gopkg.in/yaml.v3"

	"github.com/MarcinKonowalczyk/runbf/bf"
)

// Config is read from an optional TOML or YAML file and then overridden by
// flags.
type Config struct {
	TapeSize     int    `toml:"tape-size" yaml:"tape-size"`
	MaxLoopDepth int    `toml:"max-loop-depth" yaml:"max-loop-depth"`
	Debug        bool   `toml:"debug" yaml:"debug"`
	LogFormat    string `toml:"log-format" yaml:"log-format"`
}

func Default() *Config {
	return &Config{
		TapeSize:  bf.DefaultTapeSize,
		LogFormat: string(log.TextFormat),
	}
}

// Load reads the config file at path on top of the defaults. The format is
// picked from the extension: .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the config file at path into c. Keys missing from the file
// keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse error in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config file %s: unknown format %q: %w", path, ext, errdefs.ErrInvalidArgument)
	}
	return nil
}

// RegisterFlags binds the settings to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.TapeSize, "tape-size", c.TapeSize, "number of cells on the tape")
	fs.IntVar(&c.MaxLoopDepth, "max-loop-depth", c.MaxLoopDepth, "refuse programs with more loops than this (0 for no limit)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (text or json)")
}

func (c *Config) Validate() error {
	if c.TapeSize < 0 {
		return fmt.Errorf("tape size %d is negative: %w", c.TapeSize, errdefs.ErrInvalidArgument)
	}
	if c.MaxLoopDepth < 0 {
		return fmt.Errorf("max loop depth %d is negative: %w", c.MaxLoopDepth, errdefs.ErrInvalidArgument)
	}
	switch log.OutputFormat(c.LogFormat) {
	case log.TextFormat, log.JSONFormat:
	default:
		return fmt.Errorf("unknown log format %q: %w", c.LogFormat, errdefs.ErrInvalidArgument)
	}
	return nil
}

// ApplyLogging sets the global log level and format.
func (c *Config) ApplyLogging() error {
	level := "info"
	if c.Debug {
		level = "debug"
	}
	if err := log.SetLevel(level); err != nil {
		return err
	}
	return log.SetFormat(log.OutputFormat(c.LogFormat))
}

// Options converts the config into interpreter options.
func (c *Config) Options() []bf.Option {
	return []bf.Option{
		bf.WithTapeSize(c.TapeSize),
		bf.WithMaxLoopDepth(c.MaxLoopDepth),
	}
}
