// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/core/fib"
	"github.com/momentics/hioload-fib/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`      // TCP bind address, e.g. ":25000"
	Backlog         int           `yaml:"backlog"`          // pending-connection queue length
	ReuseAddr       bool          `yaml:"reuse_addr"`       // SO_REUSEADDR on the listener
	MaxIndex        uint64        `yaml:"max_index"`        // largest accepted Fibonacci index
	ReadChunk       int           `yaml:"read_chunk"`       // bytes per request read
	JournalSize     int           `yaml:"journal_size"`     // recent requests kept for /debug/state
	MetricsAddr     string        `yaml:"metrics_addr"`     // exporter address, empty disables
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // bound on graceful shutdown
}

// DefaultConfig returns the settings of the reference server.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":25000",
		Backlog:         5,
		ReuseAddr:       true,
		MaxIndex:        fib.MaxIndex,
		ReadChunk:       protocol.MaxRequestSize,
		JournalSize:     128,
		MetricsAddr:     "",
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	invalid := func(field string, v any) error {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid config").
			WithContext("field", field).
			WithContext("value", v)
	}
	switch {
	case c.ListenAddr == "":
		return invalid("listen_addr", c.ListenAddr)
	case c.Backlog <= 0:
		return invalid("backlog", c.Backlog)
	case c.MaxIndex == 0 || c.MaxIndex > fib.MaxIndex:
		return invalid("max_index", c.MaxIndex)
	case c.ReadChunk <= 0:
		return invalid("read_chunk", c.ReadChunk)
	case c.JournalSize < 0:
		return invalid("journal_size", c.JournalSize)
	case c.ShutdownTimeout < 0:
		return invalid("shutdown_timeout", c.ShutdownTimeout)
	}
	return nil
}
