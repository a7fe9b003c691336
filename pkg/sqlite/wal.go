package sqlite

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WAL file layout constants.
const (
	WALHeaderSize      = 32
	WALFrameHeaderSize = 24

	walMagicLE = 0x377f0682 // checksum words are little-endian
	walMagicBE = 0x377f0683 // checksum words are big-endian
)

// WALHeader holds the decoded 32-byte write-ahead log header.
type WALHeader struct {
	Magic         uint32
	Version       uint32
	PageSize      uint32
	CheckpointSeq uint32
	Salt1         uint32
	Salt2         uint32
	Checksum1     uint32
	Checksum2     uint32
}

// BigEndianChecksum reports the word order used by the checksum chain,
// selected by the low bit of the magic number.
func (h WALHeader) BigEndianChecksum() bool {
	return h.Magic == walMagicBE
}

// ParseWALHeader decodes the WAL file header. All fields are stored
// big-endian regardless of the checksum word order.
func ParseWALHeader(b []byte) (WALHeader, error) {
	var h WALHeader
	if len(b) < WALHeaderSize {
		return h, &FormatError{File: "wal", Msg: fmt.Sprintf("file too small for header: %d bytes", len(b))}
	}
	h.Magic = binary.BigEndian.Uint32(b[0:4])
	if h.Magic != walMagicLE && h.Magic != walMagicBE {
		return h, &FormatError{File: "wal", Msg: fmt.Sprintf("bad magic 0x%08x", h.Magic)}
	}
	h.Version = binary.BigEndian.Uint32(b[4:8])
	h.PageSize = binary.BigEndian.Uint32(b[8:12])
	h.CheckpointSeq = binary.BigEndian.Uint32(b[12:16])
	h.Salt1 = binary.BigEndian.Uint32(b[16:20])
	h.Salt2 = binary.BigEndian.Uint32(b[20:24])
	h.Checksum1 = binary.BigEndian.Uint32(b[24:28])
	h.Checksum2 = binary.BigEndian.Uint32(b[28:32])

	if h.PageSize < MinPageSize || h.PageSize > MaxPageSize || h.PageSize&(h.PageSize-1) != 0 {
		return h, &FormatError{File: "wal", Msg: fmt.Sprintf("invalid page size %d", h.PageSize)}
	}
	return h, nil
}

// Frame is a single validated WAL frame: one page image destined for
// page Pgno, plus the commit marker.
type Frame struct {
	// Index is the 0-based position of the frame in the WAL file.
	Index int

	// Pgno is the database page this frame overwrites.
	Pgno uint32

	// DBSize is the size of the database in pages after a commit.
	// Zero for all non-commit frames.
	DBSize uint32

	data []byte
}

// Commit reports whether this frame closes a transaction.
func (f *Frame) Commit() bool { return f.DBSize != 0 }

// Data returns the page image carried by the frame.
func (f *Frame) Data() []byte { return f.data }

// FrameReader yields validated WAL frames in file order. It is lazy:
// each Next call reads exactly one frame from the underlying reader.
//
// A frame whose salts do not match the header, or whose cumulative
// checksum fails, ends the valid prefix of the log: the reader records
// a warning and reports io.EOF. Frames already yielded stay valid; the
// checksum chain makes anything after the first bad frame unusable.
type FrameReader struct {
	Header WALHeader

	r        io.ReaderAt
	size     int64
	off      int64
	idx      int
	s1, s2   uint32
	done     bool
	warnings []Warning
}

// NewFrameReader parses the WAL header and prepares frame iteration.
// The WAL page size must match the database it accompanies; a mismatch
// is a FormatError. A header whose own checksum fails marks the whole
// log stale: the reader yields zero frames and records a warning.
func NewFrameReader(r io.ReaderAt, size int64, dbPageSize uint32) (*FrameReader, error) {
	buf := make([]byte, WALHeaderSize)
	if size < WALHeaderSize {
		return nil, &FormatError{File: "wal", Msg: fmt.Sprintf("file too small: %d bytes", size)}
	}
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read wal header: %w", err)
	}
	h, err := ParseWALHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.PageSize != dbPageSize {
		return nil, &FormatError{File: "wal", Msg: fmt.Sprintf("wal page size %d does not match database page size %d", h.PageSize, dbPageSize)}
	}

	fr := &FrameReader{
		Header: h,
		r:      r,
		size:   size,
		off:    WALHeaderSize,
	}

	// The header checksum covers its own first 24 bytes and seeds the
	// per-frame chain.
	s1, s2 := walChecksum(0, 0, buf[:24], h.BigEndianChecksum())
	if s1 != h.Checksum1 || s2 != h.Checksum2 {
		fr.done = true
		fr.warnings = append(fr.warnings, Warning{
			Code:   WarnStaleFrame,
			Detail: "wal header checksum mismatch, treating log as empty",
		})
		return fr, nil
	}
	fr.s1, fr.s2 = s1, s2
	return fr, nil
}

// Next returns the next validated frame, or io.EOF when the valid
// prefix of the log is exhausted.
func (fr *FrameReader) Next() (*Frame, error) {
	if fr.done {
		return nil, io.EOF
	}
	frameSize := int64(WALFrameHeaderSize) + int64(fr.Header.PageSize)
	if fr.off+frameSize > fr.size {
		if fr.off < fr.size {
			fr.warnings = append(fr.warnings, Warning{
				Code:   WarnStaleFrame,
				Frame:  fr.idx,
				Detail: "truncated frame at end of wal discarded",
			})
		}
		fr.done = true
		return nil, io.EOF
	}

	buf := make([]byte, frameSize)
	if _, err := fr.r.ReadAt(buf, fr.off); err != nil {
		fr.done = true
		return nil, fmt.Errorf("read wal frame %d: %w", fr.idx, err)
	}

	pgno := binary.BigEndian.Uint32(buf[0:4])
	dbSize := binary.BigEndian.Uint32(buf[4:8])
	salt1 := binary.BigEndian.Uint32(buf[8:12])
	salt2 := binary.BigEndian.Uint32(buf[12:16])
	ck1 := binary.BigEndian.Uint32(buf[16:20])
	ck2 := binary.BigEndian.Uint32(buf[20:24])

	if salt1 != fr.Header.Salt1 || salt2 != fr.Header.Salt2 {
		// Salt mismatch means the frame predates the last checkpoint
		// reset; it and everything after it belong to an older log.
		fr.warnings = append(fr.warnings, Warning{
			Code:   WarnStaleFrame,
			Frame:  fr.idx,
			Detail: fmt.Sprintf("frame %d salt mismatch, remainder of wal is stale", fr.idx),
		})
		fr.done = true
		return nil, io.EOF
	}

	s1, s2 := walChecksum(fr.s1, fr.s2, buf[:8], fr.Header.BigEndianChecksum())
	s1, s2 = walChecksum(s1, s2, buf[WALFrameHeaderSize:], fr.Header.BigEndianChecksum())
	if s1 != ck1 || s2 != ck2 {
		fr.warnings = append(fr.warnings, Warning{
			Code:   WarnStaleFrame,
			Frame:  fr.idx,
			Detail: fmt.Sprintf("frame %d checksum mismatch, remainder of wal discarded", fr.idx),
		})
		fr.done = true
		return nil, io.EOF
	}
	fr.s1, fr.s2 = s1, s2

	f := &Frame{
		Index:  fr.idx,
		Pgno:   pgno,
		DBSize: dbSize,
		data:   buf[WALFrameHeaderSize:],
	}
	fr.idx++
	fr.off += frameSize
	return f, nil
}

// Warnings returns the non-fatal conditions recorded so far. Call
// after iteration has returned io.EOF to get the complete set.
func (fr *FrameReader) Warnings() []Warning {
	return fr.warnings
}

// walChecksum advances the cumulative WAL checksum over b, which must
// be a multiple of eight bytes. The word order is selected by the WAL
// magic number.
func walChecksum(s1, s2 uint32, b []byte, bigEndian bool) (uint32, uint32) {
	for i := 0; i+8 <= len(b); i += 8 {
		var x, y uint32
		if bigEndian {
			x = binary.BigEndian.Uint32(b[i : i+4])
			y = binary.BigEndian.Uint32(b[i+4 : i+8])
		} else {
			x = binary.LittleEndian.Uint32(b[i : i+4])
			y = binary.LittleEndian.Uint32(b[i+4 : i+8])
		}
		s1 += x + s2
		s2 += y + s1
	}
	return s1, s2
}
