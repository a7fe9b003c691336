package sqlite

import "fmt"

// FormatError indicates that a file header is inconsistent or not
// recognized at all. It is fatal for the file it refers to: no partial
// result can be produced from a database whose header cannot be
// trusted.
type FormatError struct {
	File string // "database" or "wal"
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("sqlite: %s format: %s", e.File, e.Msg)
}

// CorruptPageError indicates that a specific page failed structural
// validation. Callers recover locally by skipping the page and
// surfacing the event as a warning.
type CorruptPageError struct {
	Page uint32
	Msg  string
}

func (e *CorruptPageError) Error() string {
	return fmt.Sprintf("sqlite: corrupt page %d: %s", e.Page, e.Msg)
}

// WarningCode classifies non-fatal conditions encountered during a
// run. Warnings never abort extraction; they annotate the result so an
// examiner can judge how much was recovered.
type WarningCode string

const (
	// WarnStaleFrame marks a WAL frame excluded because its salts or
	// checksum did not match the running chain. Frames validated
	// before it are kept.
	WarnStaleFrame WarningCode = "stale-wal-frame"

	// WarnEmptyWAL marks a WAL that exists but contributed no
	// committed transaction.
	WarnEmptyWAL WarningCode = "empty-wal"

	// WarnCorruptPage marks a page or row skipped during decode.
	WarnCorruptPage WarningCode = "corrupt-page"

	// WarnSchemaDrift marks an unknown enumeration value or a missing
	// expected column, substituted rather than rejected.
	WarnSchemaDrift WarningCode = "schema-drift"
)

// Warning is a non-fatal condition recorded during extraction.
type Warning struct {
	Code   WarningCode `json:"code"`
	Page   uint32      `json:"page,omitempty"`
	Frame  int         `json:"frame,omitempty"`
	Detail string      `json:"detail"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Detail)
}
