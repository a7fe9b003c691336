package watch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State records the last completed extraction in watch mode, so a
// restarted watcher can tell whether the evidence changed while it was
// away.
type State struct {
	RunID       string    `json:"run_id"`
	LastRunAt   time.Time `json:"last_run_at"`
	DatabaseMod time.Time `json:"database_mod"`
	WALMod      time.Time `json:"wal_mod,omitempty"`
	Records     int       `json:"records"`
	Warnings    int       `json:"warnings"`
}

func stateFile(dir string) string { return filepath.Join(dir, "capam-watch.json") }

// LoadState reads the watch state from dir.
func LoadState(dir string) (State, error) {
	b, err := os.ReadFile(stateFile(dir))
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// SaveState writes the watch state atomically.
func SaveState(dir string, st State) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := stateFile(dir) + ".tmp"
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, stateFile(dir))
}
