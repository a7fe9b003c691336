package consent

import "strconv"

// Provenance records where a row's current bytes came from. Rows
// sourced from merged WAL frames are the most recent activity on the
// system, which matters when building a timeline.
type Provenance string

const (
	ProvenanceBase   Provenance = "base"
	ProvenanceMerged Provenance = "merged"
)

// Identity is one side of a consent-store join: an integer identifier
// and, when the first pass resolved it, the string it names (a package
// family name, a user SID, a binary path, or a capability string).
//
// The store enforces no referential integrity, so an event may
// reference an identifier with no registration row. Such identities
// are kept with only the raw identifier: partial data is still
// evidence.
type Identity struct {
	ID       int64  `json:"id"`
	Value    string `json:"value,omitempty"`
	Resolved bool   `json:"resolved"`

	// Present is false when the referencing column was NULL or absent
	// from the row.
	Present bool `json:"-"`
}

// Display returns the resolved string, or the raw identifier rendered
// as text when the reference did not resolve.
func (i Identity) Display() string {
	if !i.Present {
		return ""
	}
	if i.Resolved {
		return i.Value
	}
	return strconv.FormatInt(i.ID, 10)
}

// UsageRecord is one normalized row of PackagedUsageHistory or
// NonPackagedUsageHistory.
type UsageRecord struct {
	Table string `json:"table"`
	RowID int64  `json:"row_id"`

	Capability Capability  `json:"capability"`
	Start      Timestamp   `json:"start"`
	Stop       Timestamp   `json:"stop"`
	State      AccessState `json:"state"`

	// PackageFamily identifies packaged (store) applications.
	PackageFamily Identity `json:"package_family,omitempty"`

	// FileID, ProgramID and BinaryPath identify non-packaged (win32)
	// applications.
	FileID     Identity `json:"file_id,omitempty"`
	ProgramID  Identity `json:"program_id,omitempty"`
	BinaryPath Identity `json:"binary_path,omitempty"`

	User Identity `json:"user,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// App returns the application identity of the record: the package
// family for packaged apps, the binary path for non-packaged ones.
func (r UsageRecord) App() Identity {
	if r.Table == TablePackagedUsageHistory {
		return r.PackageFamily
	}
	return r.BinaryPath
}

// IdentityRelationship is one normalized row of
// NonPackagedIdentityRelationship, tying a binary path to its file and
// program identifiers with the time the binary was last observed.
type IdentityRelationship struct {
	RowID        int64      `json:"row_id"`
	LastObserved Timestamp  `json:"last_observed"`
	FileID       Identity   `json:"file_id"`
	ProgramID    Identity   `json:"program_id"`
	BinaryPath   Identity   `json:"binary_path"`
	Provenance   Provenance `json:"provenance"`
}
