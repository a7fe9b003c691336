package consent

import (
	"fmt"
	"strconv"

	"github.com/cybersundae/capam/pkg/sqlite"
)

// lookup is a fully-decoded registration table: identifier to string.
type lookup map[int64]string

// mapper joins decoded event rows against the lookup tables and
// normalizes them. It is built fresh per extraction run.
type mapper struct {
	lookups  map[string]lookup
	warnings []sqlite.Warning
	reported map[string]bool
}

func newMapper() *mapper {
	return &mapper{
		lookups:  make(map[string]lookup),
		reported: make(map[string]bool),
	}
}

// drift records a schema-drift warning once per table/column pair, so
// a thousand-row table does not produce a thousand copies.
func (m *mapper) drift(table, detail string) {
	key := table + "/" + detail
	if m.reported[key] {
		return
	}
	m.reported[key] = true
	m.warnings = append(m.warnings, sqlite.Warning{
		Code:   sqlite.WarnSchemaDrift,
		Detail: fmt.Sprintf("%s: %s", table, detail),
	})
}

// buildLookup decodes one ID-to-StringValue registration table.
func (m *mapper) buildLookup(pt *sqlite.PageTable, ti sqlite.TableInfo) error {
	idCol := ti.Column(colID)
	valCol := ti.Column(colStringValue)
	if valCol < 0 {
		m.drift(ti.Name, "missing expected column "+colStringValue)
		m.lookups[ti.Name] = lookup{}
		return nil
	}

	table := make(lookup)
	w, err := sqlite.WalkTable(pt, ti.RootPage, func(row sqlite.Row) error {
		if s, ok := textAt(row, valCol); ok {
			table[rowKey(row, idCol)] = s
		}
		return nil
	})
	m.warnings = append(m.warnings, w...)
	if err != nil {
		return err
	}
	m.lookups[ti.Name] = table
	return nil
}

// mapUsage decodes one usage-history table and joins it against the
// lookups built in the first pass.
func (m *mapper) mapUsage(pt *sqlite.PageTable, ti sqlite.TableInfo) ([]UsageRecord, error) {
	records := []UsageRecord{}
	w, err := sqlite.WalkTable(pt, ti.RootPage, func(row sqlite.Row) error {
		rec := UsageRecord{
			Table:      ti.Name,
			RowID:      rowKey(row, ti.Column(colID)),
			Start:      m.timestamp(row, ti, colStart),
			Stop:       m.timestamp(row, ti, colStop),
			Capability: m.capability(row, ti),
			User:       m.identity(row, ti, colUserSid, TableUsers),
			Provenance: provenanceOf(row),
		}

		switch ti.Name {
		case TablePackagedUsageHistory:
			rec.PackageFamily = m.identity(row, ti, colPackageFamily, TablePackageFamilyNames)
		case TableNonPackagedUsageHistory:
			rec.FileID = m.identity(row, ti, colFileID, TableFileIDs)
			rec.ProgramID = m.identity(row, ti, colProgramID, TableProgramIDs)
			rec.BinaryPath = m.identity(row, ti, colBinaryFullPath, TableBinaryFullPaths)
		}

		blocked, _ := m.intColumn(row, ti, colAccessBlocked)
		rec.State = deriveState(blocked, rec.Start, rec.Stop)
		records = append(records, rec)
		return nil
	})
	m.warnings = append(m.warnings, w...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// mapRelationships decodes NonPackagedIdentityRelationship, which ties
// binary paths to file and program identifiers.
func (m *mapper) mapRelationships(pt *sqlite.PageTable, ti sqlite.TableInfo) ([]IdentityRelationship, error) {
	records := []IdentityRelationship{}
	w, err := sqlite.WalkTable(pt, ti.RootPage, func(row sqlite.Row) error {
		records = append(records, IdentityRelationship{
			RowID:        rowKey(row, ti.Column(colID)),
			LastObserved: m.timestamp(row, ti, colLastObserved),
			FileID:       m.identity(row, ti, colFileID, TableFileIDs),
			ProgramID:    m.identity(row, ti, colProgramID, TableProgramIDs),
			BinaryPath:   m.identity(row, ti, colBinaryFullPath, TableBinaryFullPaths),
			Provenance:   provenanceOf(row),
		})
		return nil
	})
	m.warnings = append(m.warnings, w...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// capability resolves the Capability reference and normalizes the
// resulting string. Both failure modes degrade: an unresolved
// identifier becomes Other carrying the identifier, an unknown string
// becomes Other carrying the string.
func (m *mapper) capability(row sqlite.Row, ti sqlite.TableInfo) Capability {
	id, ok := m.intColumn(row, ti, colCapability)
	if !ok {
		return Capability{Kind: CapabilityOther}
	}
	s, resolved := m.lookups[TableCapabilities][id]
	if !resolved {
		m.drift(ti.Name, fmt.Sprintf("capability id %d has no registration row", id))
		return Capability{Kind: CapabilityOther, Raw: strconv.FormatInt(id, 10)}
	}
	c := NormalizeCapability(s)
	if c.Kind == CapabilityOther {
		m.drift(ti.Name, fmt.Sprintf("capability %q outside known enumeration", s))
	}
	return c
}

// identity resolves a foreign-key-style reference against a lookup
// table. Unresolved references keep the raw identifier: the store
// enforces no referential integrity and partial data is still
// evidence.
func (m *mapper) identity(row sqlite.Row, ti sqlite.TableInfo, col, lookupTable string) Identity {
	id, ok := m.intColumn(row, ti, col)
	if !ok {
		return Identity{}
	}
	ident := Identity{ID: id, Present: true}
	if s, resolved := m.lookups[lookupTable][id]; resolved {
		ident.Value = s
		ident.Resolved = true
	}
	return ident
}

// timestamp decodes a FILETIME column. A column the table does not
// declare is schema drift and decodes as absent, not as the epoch.
func (m *mapper) timestamp(row sqlite.Row, ti sqlite.TableInfo, col string) Timestamp {
	ticks, ok := m.intColumn(row, ti, col)
	if !ok {
		return Timestamp{}
	}
	return FromFiletime(ticks)
}

// intColumn fetches an integer column by name, reporting drift when
// the table does not declare it. A NULL value or a row stored short of
// this column reads as absent.
func (m *mapper) intColumn(row sqlite.Row, ti sqlite.TableInfo, col string) (int64, bool) {
	idx := ti.Column(col)
	if idx < 0 {
		m.drift(ti.Name, "missing expected column "+col)
		return 0, false
	}
	return intAt(row, idx)
}

// rowKey returns the row's identifier. INTEGER PRIMARY KEY columns are
// rowid aliases: the record stores NULL and the real value rides in
// the cell's rowid.
func rowKey(row sqlite.Row, idCol int) int64 {
	if idCol >= 0 && idCol < len(row.Values) {
		if v, ok := row.Values[idCol].AsInt(); ok {
			return v
		}
	}
	return row.RowID
}

// intAt reads an integer value at a storage position. Rows written
// before a column was added simply end early; that reads as absent so
// the schema default (NULL for every consent-store column) applies.
func intAt(row sqlite.Row, idx int) (int64, bool) {
	if idx < 0 || idx >= len(row.Values) {
		return 0, false
	}
	return row.Values[idx].AsInt()
}

// textAt reads a text value at a storage position.
func textAt(row sqlite.Row, idx int) (string, bool) {
	if idx < 0 || idx >= len(row.Values) {
		return "", false
	}
	return row.Values[idx].AsText()
}

// provenanceOf tags the row with where its bytes came from.
func provenanceOf(row sqlite.Row) Provenance {
	if row.FromWAL {
		return ProvenanceMerged
	}
	return ProvenanceBase
}
