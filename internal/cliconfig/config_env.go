package cliconfig

import "os"

// ApplyEnvConfig applies configuration from CAPAM_* environment
// variables. Environment values override the file but are overridden
// by explicit flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("database", os.Getenv("CAPAM_DATABASE"), &cfg.DatabasePath)
	s.setString("wal-path", os.Getenv("CAPAM_WAL_PATH"), &cfg.WALPath)
	s.setString("out", os.Getenv("CAPAM_OUT_DIR"), &cfg.OutDir)
	s.setString("format", os.Getenv("CAPAM_FORMAT"), &cfg.Format)

	s.setBoolFromString("wal", os.Getenv("CAPAM_MERGE_WAL"), &cfg.MergeWAL)
	s.setBoolFromString("watch", os.Getenv("CAPAM_WATCH"), &cfg.Watch)
	s.setBoolFromString("verbose", os.Getenv("CAPAM_VERBOSE"), &cfg.Verbose)

	return s.setDuration("debounce", os.Getenv("CAPAM_DEBOUNCE"), &cfg.Debounce)
}
