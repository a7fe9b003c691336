package sqlite

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the size of the database file header in bytes. The
// first HeaderSize bytes of page 1 are reserved for it.
const HeaderSize = 100

// Minimum and maximum page sizes permitted by the file format.
const (
	MinPageSize = 512
	MaxPageSize = 65536
)

var headerMagic = []byte("SQLite format 3\x00")

// DatabaseHeader holds the fields of the 100-byte database header that
// the read path needs.
type DatabaseHeader struct {
	PageSize        uint32
	WriteVersion    byte
	ReadVersion     byte
	ReservedSpace   byte
	ChangeCounter   uint32
	PageCount       uint32
	VersionValidFor uint32
	TextEncoding    uint32
}

// UsableSize is the portion of each page available to the B-tree,
// excluding the per-page reserved region.
func (h DatabaseHeader) UsableSize() uint32 {
	return h.PageSize - uint32(h.ReservedSpace)
}

// ParseDatabaseHeader decodes the 100-byte header at the start of the
// database file. A bad magic value or an invalid page size is a
// FormatError: nothing downstream can be trusted.
func ParseDatabaseHeader(b []byte) (DatabaseHeader, error) {
	var h DatabaseHeader
	if len(b) < HeaderSize {
		return h, &FormatError{File: "database", Msg: fmt.Sprintf("file too small for header: %d bytes", len(b))}
	}
	if !bytes.Equal(b[:16], headerMagic) {
		return h, &FormatError{File: "database", Msg: "bad magic string"}
	}

	raw := binary.BigEndian.Uint16(b[16:18])
	// A stored value of 1 means 65536; the field is only 16 bits wide.
	if raw == 1 {
		h.PageSize = MaxPageSize
	} else {
		h.PageSize = uint32(raw)
	}
	if h.PageSize < MinPageSize || h.PageSize > MaxPageSize || h.PageSize&(h.PageSize-1) != 0 {
		return h, &FormatError{File: "database", Msg: fmt.Sprintf("invalid page size %d", h.PageSize)}
	}

	h.WriteVersion = b[18]
	h.ReadVersion = b[19]
	h.ReservedSpace = b[20]
	h.ChangeCounter = binary.BigEndian.Uint32(b[24:28])
	h.PageCount = binary.BigEndian.Uint32(b[28:32])
	h.TextEncoding = binary.BigEndian.Uint32(b[56:60])
	h.VersionValidFor = binary.BigEndian.Uint32(b[92:96])

	if h.UsableSize() < 480 {
		return h, &FormatError{File: "database", Msg: fmt.Sprintf("usable page size %d below minimum", h.UsableSize())}
	}
	return h, nil
}

// Database is a read-only view of the base database image: the
// committed file on disk, before any WAL frames are applied.
type Database struct {
	Header DatabaseHeader

	r    io.ReaderAt
	size int64
}

// OpenDatabase parses the header and wraps the base image for random
// page access. The reader must cover the whole file.
func OpenDatabase(r io.ReaderAt, size int64) (*Database, error) {
	buf := make([]byte, HeaderSize)
	if size < HeaderSize {
		return nil, &FormatError{File: "database", Msg: fmt.Sprintf("file too small: %d bytes", size)}
	}
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read database header: %w", err)
	}
	h, err := ParseDatabaseHeader(buf)
	if err != nil {
		return nil, err
	}
	return &Database{Header: h, r: r, size: size}, nil
}

// PageCount returns the number of pages in the base image. The header
// field is authoritative only when the change counters agree;
// otherwise the count is derived from the file size, as a live reader
// would.
func (db *Database) PageCount() uint32 {
	if db.Header.PageCount != 0 && db.Header.ChangeCounter == db.Header.VersionValidFor {
		return db.Header.PageCount
	}
	return uint32(db.size / int64(db.Header.PageSize))
}

// Page returns the raw bytes of page n (1-based) from the base image.
func (db *Database) Page(n uint32) ([]byte, error) {
	if n == 0 || int64(n-1)*int64(db.Header.PageSize) >= db.size {
		return nil, &CorruptPageError{Page: n, Msg: "page number outside base image"}
	}
	buf := make([]byte, db.Header.PageSize)
	if _, err := db.r.ReadAt(buf, int64(n-1)*int64(db.Header.PageSize)); err != nil {
		return nil, fmt.Errorf("read page %d: %w", n, err)
	}
	return buf, nil
}
