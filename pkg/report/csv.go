package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/cybersundae/capam/pkg/consent"
)

// Output file names, one per consent-store table.
const (
	PackagedCSV      = "PackagedUsageHistory.csv"
	NonPackagedCSV   = "NonPackagedUsageHistory.csv"
	RelationshipsCSV = "NonPackagedIdentityRelationship.csv"
)

var packagedHeader = []string{
	"ID", "StartTime", "EndTime", "AccessBlocked", "Capability",
	"PackageName", "UserSID", "State", "Provenance",
}

var nonPackagedHeader = []string{
	"ID", "StartTime", "EndTime", "AccessBlocked", "Capability",
	"FileID", "ProgramID", "BinaryFullPath", "UserSID", "State", "Provenance",
}

var relationshipHeader = []string{
	"ID", "LastObservedTime", "FileID", "ProgramID", "BinaryFullPath", "Provenance",
}

// WriteCSV writes the three per-table CSV files into dir. Files are
// created exclusively; an existing file aborts the write with an error
// naming it, leaving the others untouched.
func WriteCSV(fs afero.Fs, dir string, rep *consent.Report) error {
	if err := writeCSVFile(fs, filepath.Join(dir, PackagedCSV), packagedHeader, packagedRows(rep.Packaged)); err != nil {
		return err
	}
	if err := writeCSVFile(fs, filepath.Join(dir, NonPackagedCSV), nonPackagedHeader, nonPackagedRows(rep.NonPackaged)); err != nil {
		return err
	}
	return writeCSVFile(fs, filepath.Join(dir, RelationshipsCSV), relationshipHeader, relationshipRows(rep.Relationships))
}

func packagedRows(records []consent.UsageRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.RowID, 10),
			r.Start.String(),
			r.Stop.String(),
			strconv.FormatInt(r.State.Raw, 10),
			r.Capability.String(),
			r.PackageFamily.Display(),
			r.User.Display(),
			r.State.String(),
			string(r.Provenance),
		})
	}
	return rows
}

func nonPackagedRows(records []consent.UsageRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.RowID, 10),
			r.Start.String(),
			r.Stop.String(),
			strconv.FormatInt(r.State.Raw, 10),
			r.Capability.String(),
			r.FileID.Display(),
			r.ProgramID.Display(),
			r.BinaryPath.Display(),
			r.User.Display(),
			r.State.String(),
			string(r.Provenance),
		})
	}
	return rows
}

func relationshipRows(records []consent.IdentityRelationship) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.RowID, 10),
			r.LastObserved.String(),
			r.FileID.Display(),
			r.ProgramID.Display(),
			r.BinaryPath.Display(),
			string(r.Provenance),
		})
	}
	return rows
}

func writeCSVFile(fs afero.Fs, path string, header []string, rows [][]string) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("output file %q already exists, refusing to overwrite", path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
