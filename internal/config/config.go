// Package config loads dispatcher settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	c "nativefs/internal"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel		string		`yaml:"log_level"`

	Buffers			BufferConfig	`yaml:"buffers"`
	Uring			UringConfig		`yaml:"io_uring"`

	// Pin each attached goroutine to its OS thread for the lifetime of the attachment.
	LockOSThread	bool		`yaml:"lock_os_thread"`
	// Capability names to treat as absent even if the probe finds them.
	Disable			[]string	`yaml:"disable"`
}

type BufferConfig struct {
	FreeListDepth	int		`yaml:"free_list_depth"`
	VerifyOwnerTags	bool	`yaml:"verify_owner_tags"`
}

type UringConfig struct {
	Enabled	bool	`yaml:"enabled"`
	Entries	uint32	`yaml:"entries"`
}

func Defaults() Config {
	return Config{
		LogLevel: "info",
		Buffers: BufferConfig{
			FreeListDepth: c.FREE_LIST_DEPTH,
		},
		Uring: UringConfig{
			Enabled: false,
			Entries: 0x20,
		},
		LockOSThread: true,
	}
}

// LoadFromFile reads path over Defaults().
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Buffers.FreeListDepth < 0 {
		return fmt.Errorf("buffers.free_list_depth must be >= 0, got %d", cfg.Buffers.FreeListDepth)
	}
	if cfg.Uring.Enabled && (cfg.Uring.Entries == 0 || cfg.Uring.Entries&(cfg.Uring.Entries-1) != 0) {
		return fmt.Errorf("io_uring.entries must be a power of two, got %d", cfg.Uring.Entries)
	}
	return nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
