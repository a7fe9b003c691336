// Package cliconfig resolves the capam CLI configuration from flags,
// environment variables (CAPAM_*), and an optional TOML file, in that
// precedence order.
package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by --format.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Config holds the resolved CLI configuration.
type Config struct {
	// DatabasePath is the CapabilityAccessManager.db file to parse.
	DatabasePath string

	// MergeWAL enables merging the -wal file that sits next to the
	// database. Off by default: on a live system an examiner may
	// deliberately want the checkpointed state only.
	MergeWAL bool

	// WALPath overrides the derived -wal location. Empty means derive
	// from DatabasePath when MergeWAL is set.
	WALPath string

	// OutDir is where output files are written.
	OutDir string

	// Format selects the output serializer: csv or json.
	Format string

	// Watch keeps the process alive and re-extracts whenever the
	// database or its WAL changes.
	Watch bool

	// Debounce is how long to wait after a file change before
	// re-extracting, coalescing bursts of writes.
	Debounce time.Duration

	// Verbose enables debug-level logging.
	Verbose bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OutDir:   ".",
		Format:   FormatCSV,
		Debounce: 500 * time.Millisecond,
	}
}

// Validate checks the configuration and resolves derived defaults.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Format != FormatCSV && c.Format != FormatJSON {
		return fmt.Errorf("format must be %q or %q, got %q", FormatCSV, FormatJSON, c.Format)
	}
	if c.MergeWAL && c.WALPath == "" {
		// The WAL always sits next to the database it belongs to.
		c.WALPath = c.DatabasePath + "-wal"
	}
	if !c.MergeWAL {
		c.WALPath = ""
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive")
	}
	return nil
}

var logger zerolog.Logger

func init() {
	logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Logger returns the CLI's zerolog logger.
func Logger() zerolog.Logger {
	return logger
}

// configSetter applies configuration values while respecting flag
// precedence: a value is only applied when the corresponding flag was
// not set explicitly on the command line.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBoolFromString parses environment-variable booleans: "true" and
// "1" are true, anything else false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		b = false
	}
	*dst = b
}
