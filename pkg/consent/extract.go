package consent

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/cybersundae/capam/pkg/log"
	"github.com/cybersundae/capam/pkg/sqlite"
)

// Config holds the inputs for one extraction run.
type Config struct {
	// DatabasePath is the resolved path of CapabilityAccessManager.db.
	DatabasePath string

	// WALPath is the resolved path of the accompanying -wal file.
	// Empty means no WAL: the base image is extracted as-is, which is
	// a supported state, not an error.
	WALPath string

	// Fs is the filesystem evidence is read through. Defaults to the
	// OS filesystem; tests substitute an in-memory one.
	Fs afero.Fs

	// Logger receives progress and warning logs. Defaults to no-op.
	Logger log.Logger
}

// Report is the result of one extraction run: every recovered record
// plus the warnings describing what could not be recovered. Reports
// hold no file handles and are safe to discard after serialization.
type Report struct {
	// RunID identifies this extraction run in logs and manifests. It
	// is excluded from record serialization so reruns stay
	// byte-identical.
	RunID uuid.UUID `json:"-"`

	Database string `json:"database"`
	WAL      string `json:"wal,omitempty"`

	Packaged      []UsageRecord          `json:"packaged_usage_history"`
	NonPackaged   []UsageRecord          `json:"non_packaged_usage_history"`
	Relationships []IdentityRelationship `json:"non_packaged_identity_relationship"`

	Warnings []sqlite.Warning `json:"warnings"`
}

// Records returns all usage records, packaged first, in decode order.
func (r *Report) Records() []UsageRecord {
	out := make([]UsageRecord, 0, len(r.Packaged)+len(r.NonPackaged))
	out = append(out, r.Packaged...)
	out = append(out, r.NonPackaged...)
	return out
}

// VerifyDatabase checks that the path names a plausible SQLite
// database before anything opens it: the file exists, is at least one
// header long, and starts with the magic string. Anything else is a
// FormatError up front, with a clearer message than a parse failure
// halfway through.
func VerifyDatabase(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("database file %q not found", path)
		}
		return fmt.Errorf("stat database: %w", err)
	}
	if info.Size() < sqlite.HeaderSize {
		return &sqlite.FormatError{File: "database", Msg: fmt.Sprintf("%d bytes is too small for a SQLite database", info.Size())}
	}
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 16)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return fmt.Errorf("read database magic: %w", err)
	}
	if !bytes.Equal(magic, []byte("SQLite format 3\x00")) {
		return &sqlite.FormatError{File: "database", Msg: "missing SQLite 3 file signature"}
	}
	return nil
}

// Extract runs the full pipeline: verify, parse the base header, merge
// the WAL, decode the consent-store tables, and join them into
// normalized records.
//
// Only a FormatError against the base database aborts the run. Every
// other condition (stale WAL, corrupt pages, schema drift) degrades to
// a partial Report with the condition recorded in Warnings, so the
// examiner always receives whatever could be recovered.
func Extract(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}

	if err := VerifyDatabase(cfg.Fs, cfg.DatabasePath); err != nil {
		return nil, err
	}

	dbFile, err := cfg.Fs.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer dbFile.Close()
	dbInfo, err := dbFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat database: %w", err)
	}

	db, err := sqlite.OpenDatabase(dbFile, dbInfo.Size())
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    uuid.New(),
		Database: cfg.DatabasePath,
		WAL:      cfg.WALPath,
	}
	if enc := db.Header.TextEncoding; enc != 1 {
		report.Warnings = append(report.Warnings, sqlite.Warning{
			Code:   sqlite.WarnSchemaDrift,
			Detail: fmt.Sprintf("text encoding %d, expected UTF-8; strings may be garbled", enc),
		})
	}

	frames, walClose, walWarn := openWAL(cfg, db.Header.PageSize)
	if walClose != nil {
		defer walClose()
	}
	if walWarn != nil {
		report.Warnings = append(report.Warnings, *walWarn)
		report.WAL = ""
	}

	pt, err := sqlite.BuildPageTable(db, frames)
	if err != nil {
		return nil, fmt.Errorf("merge wal: %w", err)
	}
	report.Warnings = append(report.Warnings, pt.Warnings()...)
	cfg.Logger.Debug("page table built",
		log.Uint32("pages", pt.PageCount()),
		log.String("database", cfg.DatabasePath))

	schema, w, err := sqlite.LoadSchema(pt)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	report.Warnings = append(report.Warnings, w...)

	m := newMapper()

	// First pass: registration tables, fully decoded before any event
	// row is joined.
	for _, name := range lookupTableNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ti, ok := schema[name]
		if !ok {
			m.drift(name, "table not present in database")
			m.lookups[name] = lookup{}
			continue
		}
		if err := m.buildLookup(pt, ti); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		cfg.Logger.Debug("lookup table decoded",
			log.String("table", name),
			log.Int("entries", len(m.lookups[name])))
	}

	// Second pass: event tables joined against the lookups.
	if ti, ok := schema[TablePackagedUsageHistory]; ok {
		report.Packaged, err = m.mapUsage(pt, ti)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ti.Name, err)
		}
	} else {
		m.drift(TablePackagedUsageHistory, "table not present in database")
		report.Packaged = []UsageRecord{}
	}
	if ti, ok := schema[TableNonPackagedUsageHistory]; ok {
		report.NonPackaged, err = m.mapUsage(pt, ti)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ti.Name, err)
		}
	} else {
		m.drift(TableNonPackagedUsageHistory, "table not present in database")
		report.NonPackaged = []UsageRecord{}
	}
	if ti, ok := schema[TableNonPackagedIdentityRelationship]; ok {
		report.Relationships, err = m.mapRelationships(pt, ti)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ti.Name, err)
		}
	} else {
		m.drift(TableNonPackagedIdentityRelationship, "table not present in database")
		report.Relationships = []IdentityRelationship{}
	}

	report.Warnings = append(report.Warnings, m.warnings...)
	for _, warning := range report.Warnings {
		cfg.Logger.Warn(warning.Detail, log.String("code", string(warning.Code)))
	}
	cfg.Logger.Info("extraction complete",
		log.String("run_id", report.RunID.String()),
		log.Int("packaged", len(report.Packaged)),
		log.Int("non_packaged", len(report.NonPackaged)),
		log.Int("relationships", len(report.Relationships)),
		log.Int("warnings", len(report.Warnings)))
	return report, nil
}

// openWAL prepares the WAL frame sequence. Per the propagation policy,
// nothing about the WAL is fatal to the run: a missing, truncated, or
// mismatched log degrades to base-image-only extraction with a warning
// attached, because the base image alone is still valid evidence.
func openWAL(cfg Config, dbPageSize uint32) (*sqlite.FrameReader, func(), *sqlite.Warning) {
	if cfg.WALPath == "" {
		return nil, nil, nil
	}
	info, err := cfg.Fs.Stat(cfg.WALPath)
	if err != nil {
		return nil, nil, &sqlite.Warning{
			Code:   sqlite.WarnEmptyWAL,
			Detail: fmt.Sprintf("wal not readable, continuing from base image: %v", err),
		}
	}
	if info.Size() == 0 {
		// A zero-length WAL is what a cleanly checkpointed database
		// leaves behind. Nothing to merge, nothing to warn about.
		return nil, nil, nil
	}
	f, err := cfg.Fs.Open(cfg.WALPath)
	if err != nil {
		return nil, nil, &sqlite.Warning{
			Code:   sqlite.WarnEmptyWAL,
			Detail: fmt.Sprintf("wal not readable, continuing from base image: %v", err),
		}
	}
	fr, err := sqlite.NewFrameReader(f, info.Size(), dbPageSize)
	if err != nil {
		f.Close()
		return nil, nil, &sqlite.Warning{
			Code:   sqlite.WarnStaleFrame,
			Detail: fmt.Sprintf("wal rejected, continuing from base image: %v", err),
		}
	}
	return fr, func() { f.Close() }, nil
}
