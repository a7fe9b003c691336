package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/cybersundae/capam/internal/cliconfig"
	"github.com/cybersundae/capam/internal/watch"
	"github.com/cybersundae/capam/pkg/consent"
	logpkg "github.com/cybersundae/capam/pkg/log"
	"github.com/cybersundae/capam/pkg/report"
)

const helpDescription = `
Parse the Windows CapabilityAccessManager.db artifact without a SQLite
engine: the database and its write-ahead log are decoded byte-by-byte,
so evidence is never opened for writing.

Highlights:
  - Merges committed WAL frames over the base image, the way a live
    reader would see them, and tags each record with its provenance.
  - Joins the usage-history tables against the string lookup tables
    and normalizes FILETIME timestamps to UTC.
  - Degrades gracefully: stale WAL frames, corrupt pages, and schema
    drift across Windows builds become warnings, not lost evidence.
`

var exampleUsage = strings.TrimSpace(`
  capam --database CapabilityAccessManager.db --out results/
  capam -d CapabilityAccessManager.db -w --format json
  capam -d CapabilityAccessManager.db -w --watch --out live/
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "capam",
		Short:   "Parse the Windows CapabilityAccessManager.db artifact, optionally merging its WAL",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Flags set explicitly on the command line win over file
			// and environment values.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Verbose {
				log = log.Level(zerolog.DebugLevel)
			} else {
				log = log.Level(zerolog.InfoLevel)
			}
			logger := logpkg.NewZerologAdapterWithLogger(log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-sigCh:
					log.Info().Msg("received signal, stopping")
					cancel()
				case <-ctx.Done():
				}
			}()

			if !cfg.Watch {
				_, err := runOnce(ctx, cfg, logger, cfg.OutDir)
				return err
			}
			return runWatch(ctx, cfg, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.capam/config.toml)")
	root.Flags().StringVarP(&cfg.DatabasePath, "database", "d", "", "path to the CapabilityAccessManager.db file")
	root.Flags().BoolVarP(&cfg.MergeWAL, "wal", "w", cfg.MergeWAL, "merge the -wal file next to the database (may not be preferred on a live system)")
	root.Flags().StringVar(&cfg.WALPath, "wal-path", cfg.WALPath, "explicit path to the -wal file (implies --wal)")
	root.Flags().StringVarP(&cfg.OutDir, "out", "o", cfg.OutDir, "output folder for result files")
	root.Flags().StringVar(&cfg.Format, "format", cfg.Format, "output format: csv or json")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "keep running and re-extract when the database or WAL changes")
	root.Flags().DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "delay after a change before re-extracting in watch mode")
	root.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable debug logging")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("capam")
		os.Exit(1)
	}
}

// runOnce extracts the database once and serializes the result to dir.
func runOnce(ctx context.Context, cfg cliconfig.Config, logger logpkg.Logger, dir string) (*consent.Report, error) {
	fs := afero.NewOsFs()

	rep, err := consent.Extract(ctx, consent.Config{
		DatabasePath: cfg.DatabasePath,
		WALPath:      cfg.WALPath,
		Fs:           fs,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}
	switch cfg.Format {
	case cliconfig.FormatJSON:
		err = report.WriteJSON(fs, dir, rep)
	default:
		err = report.WriteCSV(fs, dir, rep)
	}
	if err != nil {
		return nil, err
	}
	if err := report.WriteManifest(fs, dir, report.NewManifest(rep, time.Now())); err != nil {
		return nil, err
	}
	return rep, nil
}

// runWatch re-extracts on every change, each run into its own
// timestamped subdirectory so exclusive-create semantics hold.
func runWatch(ctx context.Context, cfg cliconfig.Config, logger logpkg.Logger) error {
	paths := []string{cfg.DatabasePath}
	if cfg.WALPath != "" {
		paths = append(paths, cfg.WALPath)
	}

	w := watch.New(watch.Config{
		Paths:    paths,
		Debounce: cfg.Debounce,
		Logger:   logger,
		OnChange: func(ctx context.Context) {
			dir := runDir(cfg.OutDir, time.Now())
			rep, err := runOnce(ctx, cfg, logger, dir)
			if err != nil {
				logger.Error("extraction failed", logpkg.Err(err))
				return
			}
			saveWatchState(cfg, rep, logger)
		},
	})

	err := w.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func runDir(out string, at time.Time) string {
	return fmt.Sprintf("%s/run-%s", strings.TrimRight(out, "/"), at.UTC().Format("20060102T150405Z"))
}

// saveWatchState records the run summary and input mtimes after a
// successful run; a restarted watcher can compare them to see whether
// it missed changes.
func saveWatchState(cfg cliconfig.Config, rep *consent.Report, logger logpkg.Logger) {
	st := watch.State{
		RunID:     rep.RunID.String(),
		LastRunAt: time.Now().UTC(),
		Records:   len(rep.Records()) + len(rep.Relationships),
		Warnings:  len(rep.Warnings),
	}
	if info, err := os.Stat(cfg.DatabasePath); err == nil {
		st.DatabaseMod = info.ModTime()
	}
	if cfg.WALPath != "" {
		if info, err := os.Stat(cfg.WALPath); err == nil {
			st.WALMod = info.ModTime()
		}
	}
	if err := watch.SaveState(cfg.OutDir, st); err != nil {
		logger.Warn("could not save watch state", logpkg.Err(err))
	}
}
