// Package capam parses the Windows CapabilityAccessManager.db consent
// store forensically, without a SQLite engine.
//
// Example usage:
//
//	rep, err := capam.Extract(context.Background(), capam.Config{
//	    DatabasePath: "CapabilityAccessManager.db",
//	    WALPath:      "CapabilityAccessManager.db-wal",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range rep.Records() {
//	    fmt.Println(rec.App(), rec.Capability, rec.Start)
//	}
package capam

import (
	"context"

	"github.com/spf13/afero"

	"github.com/cybersundae/capam/pkg/consent"
)

// Config holds the inputs for one extraction run.
type Config = consent.Config

// Report is the result of one extraction run.
type Report = consent.Report

// UsageRecord is one normalized row from a usage-history table.
type UsageRecord = consent.UsageRecord

// IdentityRelationship is one row from NonPackagedIdentityRelationship.
type IdentityRelationship = consent.IdentityRelationship

// Extract runs the full pipeline against the configured database and
// optional WAL. Only a malformed base database is fatal; everything
// else degrades to warnings on the Report.
func Extract(ctx context.Context, cfg Config) (*Report, error) {
	return consent.Extract(ctx, cfg)
}

// VerifyDatabase checks that path names a plausible SQLite database
// without parsing it.
func VerifyDatabase(fs afero.Fs, path string) error {
	return consent.VerifyDatabase(fs, path)
}
