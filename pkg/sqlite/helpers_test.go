package sqlite

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// putVarint encodes a SQLite varint. Independent of the production
// decoder so the two check each other.
func putVarint(v uint64) []byte {
	if v>>56 != 0 {
		b := make([]byte, 9)
		b[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			b[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return b
	}
	var tmp [8]byte
	n := 0
	for {
		tmp[n] = byte(v & 0x7f)
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	out := make([]byte, 0, n)
	for i := n - 1; i >= 0; i-- {
		c := tmp[i]
		if i != 0 {
			c |= 0x80
		}
		out = append(out, c)
	}
	return out
}

// col is one column of a synthetic record: a serial type and its
// content bytes.
type col struct {
	typ  uint64
	data []byte
}

func textCol(s string) col { return col{uint64(13 + 2*len(s)), []byte(s)} }

func intCol(v int64) col {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return col{6, b}
}

func nullCol() col { return col{0, nil} }

// makeRecord assembles a payload in the record format: a header of
// serial-type varints followed by the column contents.
func makeRecord(cols ...col) []byte {
	var types []byte
	for _, c := range cols {
		types = append(types, putVarint(c.typ)...)
	}
	// The header length varint counts itself; for test-sized records
	// one byte always suffices.
	hdr := append([]byte{byte(len(types) + 1)}, types...)
	out := hdr
	for _, c := range cols {
		out = append(out, c.data...)
	}
	return out
}

// makeCell assembles a leaf table cell with a fully local payload.
func makeCell(rowid int64, record []byte) []byte {
	out := putVarint(uint64(len(record)))
	out = append(out, putVarint(uint64(rowid))...)
	out = append(out, record...)
	return out
}

// leafPage lays out raw cells on a leaf table page, content packed
// from the tail like SQLite does.
func leafPage(pageSize, hdrOff int, cells [][]byte) []byte {
	page := make([]byte, pageSize)
	page[hdrOff] = pageTypeLeafTable
	binary.BigEndian.PutUint16(page[hdrOff+3:], uint16(len(cells)))
	content := pageSize
	ptr := hdrOff + 8
	for _, c := range cells {
		content -= len(c)
		copy(page[content:], c)
		binary.BigEndian.PutUint16(page[ptr:], uint16(content))
		ptr += 2
	}
	binary.BigEndian.PutUint16(page[hdrOff+5:], uint16(content))
	return page
}

// interiorPage lays out an interior table page with the given child
// pages, the last one becoming the right-most pointer.
func interiorPage(pageSize, hdrOff int, children []uint32) []byte {
	page := make([]byte, pageSize)
	page[hdrOff] = pageTypeInteriorTable
	n := len(children) - 1
	binary.BigEndian.PutUint16(page[hdrOff+3:], uint16(n))
	binary.BigEndian.PutUint32(page[hdrOff+8:], children[n])
	content := pageSize
	ptr := hdrOff + 12
	for i := 0; i < n; i++ {
		cell := binary.BigEndian.AppendUint32(nil, children[i])
		cell = append(cell, putVarint(uint64(i+1))...)
		content -= len(cell)
		copy(page[content:], cell)
		binary.BigEndian.PutUint16(page[ptr:], uint16(content))
		ptr += 2
	}
	binary.BigEndian.PutUint16(page[hdrOff+5:], uint16(content))
	return page
}

// testDB assembles a database image page by page. Page 1 gets the
// 100-byte header stamped over its start when the image is serialized.
type testDB struct {
	pageSize int
	pages    [][]byte
}

func newTestDB(pageSize int) *testDB { return &testDB{pageSize: pageSize} }

func (d *testDB) addPage(p []byte) uint32 {
	d.pages = append(d.pages, p)
	return uint32(len(d.pages))
}

func (d *testDB) bytes() []byte {
	buf := make([]byte, 0, len(d.pages)*d.pageSize)
	for _, p := range d.pages {
		buf = append(buf, p...)
	}
	copy(buf, "SQLite format 3\x00")
	binary.BigEndian.PutUint16(buf[16:], uint16(d.pageSize))
	buf[18], buf[19] = 2, 2
	binary.BigEndian.PutUint32(buf[24:], 7)
	binary.BigEndian.PutUint32(buf[28:], uint32(len(d.pages)))
	binary.BigEndian.PutUint32(buf[56:], 1)
	binary.BigEndian.PutUint32(buf[92:], 7)
	return buf
}

func (d *testDB) open(t *testing.T) *Database {
	t.Helper()
	b := d.bytes()
	db, err := OpenDatabase(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	return db
}

// schemaRow builds one sqlite_schema row for a table.
func schemaRow(name string, root int64, sql string) []byte {
	return makeRecord(textCol("table"), textCol(name), textCol(name), intCol(root), textCol(sql))
}

type testFrame struct {
	pgno   uint32
	dbSize uint32
	data   []byte
}

// buildWAL serializes a WAL image with valid little-endian checksums,
// computed independently of the production chain.
func buildWAL(pageSize, salt1, salt2 uint32, frames []testFrame) []byte {
	hdr := make([]byte, WALHeaderSize)
	binary.BigEndian.PutUint32(hdr[0:], 0x377f0682)
	binary.BigEndian.PutUint32(hdr[4:], 3007000)
	binary.BigEndian.PutUint32(hdr[8:], pageSize)
	binary.BigEndian.PutUint32(hdr[12:], 1)
	binary.BigEndian.PutUint32(hdr[16:], salt1)
	binary.BigEndian.PutUint32(hdr[20:], salt2)
	s1, s2 := testChecksum(0, 0, hdr[:24])
	binary.BigEndian.PutUint32(hdr[24:], s1)
	binary.BigEndian.PutUint32(hdr[28:], s2)

	out := hdr
	for _, f := range frames {
		fh := make([]byte, WALFrameHeaderSize)
		binary.BigEndian.PutUint32(fh[0:], f.pgno)
		binary.BigEndian.PutUint32(fh[4:], f.dbSize)
		binary.BigEndian.PutUint32(fh[8:], salt1)
		binary.BigEndian.PutUint32(fh[12:], salt2)
		s1, s2 = testChecksum(s1, s2, fh[:8])
		s1, s2 = testChecksum(s1, s2, f.data)
		binary.BigEndian.PutUint32(fh[16:], s1)
		binary.BigEndian.PutUint32(fh[20:], s2)
		out = append(out, fh...)
		out = append(out, f.data...)
	}
	return out
}

func testChecksum(s1, s2 uint32, b []byte) (uint32, uint32) {
	for i := 0; i+8 <= len(b); i += 8 {
		s1 += binary.LittleEndian.Uint32(b[i:]) + s2
		s2 += binary.LittleEndian.Uint32(b[i+4:]) + s1
	}
	return s1, s2
}

func openFrameReader(t *testing.T, wal []byte, dbPageSize uint32) *FrameReader {
	t.Helper()
	fr, err := NewFrameReader(bytes.NewReader(wal), int64(len(wal)), dbPageSize)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	return fr
}

// filledPage returns a page of pageSize bytes all set to fill.
func filledPage(pageSize int, fill byte) []byte {
	p := make([]byte, pageSize)
	for i := range p {
		p[i] = fill
	}
	return p
}
