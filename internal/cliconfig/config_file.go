package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to keep the
// TOML friendly.
type fileConfig struct {
	DatabasePath string `toml:"database"`
	MergeWAL     *bool  `toml:"merge_wal"`
	WALPath      string `toml:"wal"`
	OutDir       string `toml:"out_dir"`
	Format       string `toml:"format"`
	Watch        *bool  `toml:"watch"`
	Debounce     string `toml:"debounce"`
	Verbose      *bool  `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.capam/config.toml when the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".capam", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies file values to cfg, skipping any field whose
// flag was set explicitly.
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("database", fc.DatabasePath, &cfg.DatabasePath)
	s.setString("wal-path", fc.WALPath, &cfg.WALPath)
	s.setString("out", fc.OutDir, &cfg.OutDir)
	s.setString("format", fc.Format, &cfg.Format)

	s.setBool("wal", fc.MergeWAL, &cfg.MergeWAL)
	s.setBool("watch", fc.Watch, &cfg.Watch)
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)

	return s.setDuration("debounce", fc.Debounce, &cfg.Debounce)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
