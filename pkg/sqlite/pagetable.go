package sqlite

import (
	"errors"
	"fmt"
	"io"
)

// PageTable is the logical page image a live SQLite reader would see:
// the base database with all committed WAL frames folded on top. It is
// built once per run and never mutated afterwards.
type PageTable struct {
	db        *Database
	overrides map[uint32][]byte
	pageCount uint32
	warnings  []Warning
}

// BuildPageTable folds the validated frame sequence onto the base
// image. Frames are applied in file order, later frames overriding
// earlier ones for the same page. Only frames inside a committed
// transaction are applied: a frame with a non-zero db-size field
// closes the current transaction, and trailing frames after the last
// commit are discarded so uncommitted writes never leak into the
// result.
//
// fr may be nil (no WAL present), in which case the table is the base
// image unchanged. A read failure partway through the log is recorded
// as a warning and the committed prefix is kept.
func BuildPageTable(db *Database, fr *FrameReader) (*PageTable, error) {
	pt := &PageTable{
		db:        db,
		overrides: make(map[uint32][]byte),
		pageCount: db.PageCount(),
	}
	if fr == nil {
		return pt, nil
	}

	pending := make(map[uint32][]byte)
	committed := false
	for {
		f, err := fr.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// A read failure mid-log is no worse than a torn tail:
				// the committed prefix stays valid.
				pt.warnings = append(pt.warnings, Warning{
					Code:   WarnStaleFrame,
					Detail: fmt.Sprintf("wal unreadable past the last valid frame, keeping committed prefix: %v", err),
				})
			}
			break
		}
		pending[f.Pgno] = f.Data()
		if f.Commit() {
			for pgno, data := range pending {
				pt.overrides[pgno] = data
			}
			pt.pageCount = f.DBSize
			pending = make(map[uint32][]byte)
			committed = true
		}
	}
	pt.warnings = append(pt.warnings, fr.Warnings()...)

	if len(pending) > 0 {
		pt.warnings = append(pt.warnings, Warning{
			Code:   WarnStaleFrame,
			Detail: fmt.Sprintf("%d trailing frames belong to an uncommitted transaction, discarded", len(pending)),
		})
	}
	if !committed {
		pt.warnings = append(pt.warnings, Warning{
			Code:   WarnEmptyWAL,
			Detail: "wal contains no committed transaction, using base image unchanged",
		})
	}
	return pt, nil
}

// PageCount returns the logical database size in pages, reflecting the
// last committed transaction.
func (pt *PageTable) PageCount() uint32 {
	return pt.pageCount
}

// UsableSize returns the per-page bytes available to the B-tree.
func (pt *PageTable) UsableSize() uint32 {
	return pt.db.Header.UsableSize()
}

// PageSize returns the database page size.
func (pt *PageTable) PageSize() uint32 {
	return pt.db.Header.PageSize
}

// Page returns the current bytes of page n: the WAL override when one
// exists, the base image otherwise.
func (pt *PageTable) Page(n uint32) ([]byte, error) {
	if n == 0 || n > pt.pageCount {
		return nil, &CorruptPageError{Page: n, Msg: fmt.Sprintf("page number outside logical image of %d pages", pt.pageCount)}
	}
	if data, ok := pt.overrides[n]; ok {
		return data, nil
	}
	return pt.db.Page(n)
}

// FromWAL reports whether the current content of page n came from a
// merged WAL frame rather than the base image. Forensically relevant:
// WAL-sourced pages hold the most recent activity.
func (pt *PageTable) FromWAL(n uint32) bool {
	_, ok := pt.overrides[n]
	return ok
}

// Warnings returns non-fatal conditions recorded while merging.
func (pt *PageTable) Warnings() []Warning {
	return pt.warnings
}
