// Package watch re-runs extraction whenever the database or its WAL
// changes on disk. It exists for live triage: pointed at a running
// system's consent store, capam keeps the output current as Windows
// appends new usage events to the WAL.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cybersundae/capam/pkg/log"
)

// Config holds watcher options.
type Config struct {
	// Paths are the files to watch. Their parent directories are
	// registered with fsnotify, since editors and SQLite itself
	// replace files by rename.
	Paths []string

	// Debounce coalesces bursts of write events into one re-run.
	Debounce time.Duration

	// OnChange is invoked once at startup and after each debounced
	// change. Errors are the callback's to log; the watcher keeps
	// running regardless, because a transiently locked database on a
	// live system is expected.
	OnChange func(ctx context.Context)

	Logger log.Logger
}

// Watcher drives debounced re-extraction off filesystem events.
type Watcher struct {
	cfg      Config
	names    map[string]bool
	mu       sync.Mutex
	debounce *time.Timer
}

// New creates a Watcher. The zero Debounce defaults to 500ms.
func New(cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	names := make(map[string]bool, len(cfg.Paths))
	for _, p := range cfg.Paths {
		names[filepath.Base(p)] = true
	}
	return &Watcher{cfg: cfg, names: names}
}

// Run blocks until ctx is cancelled, invoking OnChange on startup and
// after every debounced change to a watched file.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	for _, p := range w.cfg.Paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	// Initial run before any event arrives.
	w.cfg.OnChange(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.names[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.cfg.Logger.Debug("change detected",
				log.String("file", event.Name),
				log.String("op", event.Op.String()))
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Error("watcher error", log.Err(err))
		}
	}
}

// schedule arms (or re-arms) the debounce timer.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.cfg.Debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.cfg.OnChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
