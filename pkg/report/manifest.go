package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/cybersundae/capam/pkg/consent"
)

// ManifestFile records metadata about an extraction run next to its
// output. Unlike the record files it is intentionally not
// deterministic (run ID, wall-clock time), so it lives in a separate
// file that hashing workflows can exclude.
const ManifestFile = "capam-run.json"

// Manifest summarizes one extraction run.
type Manifest struct {
	RunID         string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	Database      string    `json:"database"`
	WAL           string    `json:"wal,omitempty"`
	Packaged      int       `json:"packaged_records"`
	NonPackaged   int       `json:"non_packaged_records"`
	Relationships int       `json:"relationship_records"`
	Warnings      int       `json:"warnings"`
}

// NewManifest builds a manifest for the given report.
func NewManifest(rep *consent.Report, at time.Time) Manifest {
	return Manifest{
		RunID:         rep.RunID.String(),
		GeneratedAt:   at.UTC(),
		Database:      rep.Database,
		WAL:           rep.WAL,
		Packaged:      len(rep.Packaged),
		NonPackaged:   len(rep.NonPackaged),
		Relationships: len(rep.Relationships),
		Warnings:      len(rep.Warnings),
	}
}

// WriteManifest writes the manifest into dir, replacing any previous
// one. Manifests describe runs, not evidence, so overwriting is fine.
func WriteManifest(fs afero.Fs, dir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := afero.WriteFile(fs, path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
