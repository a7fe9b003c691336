package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// B-tree page type bytes.
const (
	pageTypeInteriorIndex = 0x02
	pageTypeInteriorTable = 0x05
	pageTypeLeafIndex     = 0x0a
	pageTypeLeafTable     = 0x0d
)

// Row is one table row decoded from a leaf page.
type Row struct {
	RowID  int64
	Values []Value

	// FromWAL is true when any page holding this row's bytes (the
	// leaf page or an overflow continuation) came from a merged WAL
	// frame.
	FromWAL bool
}

// WalkTable traverses the table B-tree rooted at page root in key
// order and calls fn for every decoded row. Traversal uses an explicit
// worklist rather than recursion, so deep or deliberately corrupted
// trees cannot exhaust the call stack.
//
// Structural damage is contained per page: a page whose cell count or
// offsets fall outside its bounds is skipped and reported as a
// warning, and the walk continues with the rest of the tree. An error
// returned by fn aborts the walk.
func WalkTable(pt *PageTable, root uint32, fn func(Row) error) ([]Warning, error) {
	var warnings []Warning
	warn := func(page uint32, msg string) {
		warnings = append(warnings, Warning{Code: WarnCorruptPage, Page: page, Detail: msg})
	}

	visited := make(map[uint32]bool)
	stack := []uint32{root}
	for len(stack) > 0 {
		pgno := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[pgno] {
			warn(pgno, "page referenced twice in tree, cycle suspected")
			continue
		}
		visited[pgno] = true

		page, err := pt.Page(pgno)
		if err != nil {
			warn(pgno, err.Error())
			continue
		}

		hdrOff := 0
		if pgno == 1 {
			hdrOff = HeaderSize
		}
		typ := page[hdrOff]
		switch typ {
		case pageTypeInteriorTable:
			children, err := interiorChildren(page, hdrOff, pt.UsableSize())
			if err != nil {
				warn(pgno, err.Error())
				continue
			}
			// Push in reverse so the leftmost child pops first and
			// rows come out in key order.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		case pageTypeLeafTable:
			w, err := walkLeaf(pt, pgno, page, hdrOff, fn)
			warnings = append(warnings, w...)
			if err != nil {
				return warnings, err
			}
		case pageTypeInteriorIndex, pageTypeLeafIndex:
			warn(pgno, fmt.Sprintf("index page 0x%02x in table tree, skipped", typ))
		default:
			warn(pgno, fmt.Sprintf("unknown page type 0x%02x", typ))
		}
	}
	return warnings, nil
}

// cellPointers validates the page header and returns the cell content
// offsets in pointer-array order.
func cellPointers(page []byte, hdrOff int, interior bool, usable uint32) ([]int, error) {
	hdrLen := 8
	if interior {
		hdrLen = 12
	}
	if hdrOff+hdrLen > len(page) {
		return nil, fmt.Errorf("page header overruns page")
	}
	cellCount := int(binary.BigEndian.Uint16(page[hdrOff+3 : hdrOff+5]))
	arrayStart := hdrOff + hdrLen
	if arrayStart+2*cellCount > int(usable) {
		return nil, fmt.Errorf("cell pointer array for %d cells overruns usable area", cellCount)
	}
	ptrs := make([]int, 0, cellCount)
	for i := 0; i < cellCount; i++ {
		off := int(binary.BigEndian.Uint16(page[arrayStart+2*i : arrayStart+2*i+2]))
		if off < arrayStart+2*cellCount || off >= int(usable) {
			return nil, fmt.Errorf("cell %d offset %d outside page bounds", i, off)
		}
		ptrs = append(ptrs, off)
	}
	return ptrs, nil
}

// interiorChildren returns the child page numbers of an interior table
// page in left-to-right order, ending with the right-most pointer.
func interiorChildren(page []byte, hdrOff int, usable uint32) ([]uint32, error) {
	ptrs, err := cellPointers(page, hdrOff, true, usable)
	if err != nil {
		return nil, err
	}
	children := make([]uint32, 0, len(ptrs)+1)
	for _, off := range ptrs {
		if off+4 > len(page) {
			return nil, fmt.Errorf("interior cell at %d overruns page", off)
		}
		children = append(children, binary.BigEndian.Uint32(page[off:off+4]))
	}
	children = append(children, binary.BigEndian.Uint32(page[hdrOff+8:hdrOff+12]))
	return children, nil
}

// walkLeaf decodes every cell on a leaf table page. Damaged cells are
// skipped with a warning so one bad row does not cost the page.
func walkLeaf(pt *PageTable, pgno uint32, page []byte, hdrOff int, fn func(Row) error) ([]Warning, error) {
	var warnings []Warning
	warn := func(msg string) {
		warnings = append(warnings, Warning{Code: WarnCorruptPage, Page: pgno, Detail: msg})
	}

	ptrs, err := cellPointers(page, hdrOff, false, pt.UsableSize())
	if err != nil {
		warn(err.Error())
		return warnings, nil
	}

	for i, off := range ptrs {
		rowid, payload, fromWAL, err := leafCellPayload(pt, page, off)
		if err != nil {
			warn(fmt.Sprintf("cell %d: %v", i, err))
			continue
		}
		values, err := DecodeRecord(payload)
		if err != nil {
			warn(fmt.Sprintf("cell %d record: %v", i, err))
			continue
		}
		row := Row{
			RowID:   rowid,
			Values:  values,
			FromWAL: pt.FromWAL(pgno) || fromWAL,
		}
		if err := fn(row); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// leafCellPayload assembles the full payload of a leaf table cell,
// following the overflow chain when the row does not fit locally.
func leafCellPayload(pt *PageTable, page []byte, off int) (int64, []byte, bool, error) {
	payloadLen, n1 := getVarint(page[off:])
	if n1 == 0 {
		return 0, nil, false, fmt.Errorf("truncated payload length varint")
	}
	// Bound before converting to int: a hostile varint past MaxInt32
	// would wrap negative and slip through the range checks below.
	if payloadLen > math.MaxInt32 {
		return 0, nil, false, fmt.Errorf("payload length %d exceeds any valid cell", payloadLen)
	}
	rowid, n2 := getVarint(page[off+n1:])
	if n2 == 0 {
		return 0, nil, false, fmt.Errorf("truncated rowid varint")
	}
	body := off + n1 + n2

	u := int(pt.UsableSize())
	p := int(payloadLen)
	maxLocal := u - 35
	if p <= maxLocal {
		if body+p > len(page) {
			return 0, nil, false, fmt.Errorf("local payload of %d bytes overruns page", p)
		}
		return int64(rowid), page[body : body+p], false, nil
	}

	// Spilled row: the local prefix size is fixed by the file format
	// so that readers and writers agree on where the overflow pointer
	// sits.
	minLocal := (u-12)*32/255 - 23
	local := minLocal + (p-minLocal)%(u-4)
	if local > maxLocal {
		local = minLocal
	}
	if body+local+4 > len(page) {
		return 0, nil, false, fmt.Errorf("spilled payload prefix overruns page")
	}

	payload := make([]byte, 0, p)
	payload = append(payload, page[body:body+local]...)
	next := binary.BigEndian.Uint32(page[body+local : body+local+4])

	fromWAL := false
	remaining := p - local
	seen := make(map[uint32]bool)
	for remaining > 0 {
		if next == 0 {
			return 0, nil, false, fmt.Errorf("overflow chain ends %d bytes short", remaining)
		}
		if seen[next] {
			return 0, nil, false, fmt.Errorf("overflow chain cycles at page %d", next)
		}
		seen[next] = true

		ovfl, err := pt.Page(next)
		if err != nil {
			return 0, nil, false, fmt.Errorf("overflow page %d: %w", next, err)
		}
		fromWAL = fromWAL || pt.FromWAL(next)

		chunk := u - 4
		if chunk > remaining {
			chunk = remaining
		}
		if 4+chunk > len(ovfl) {
			return 0, nil, false, fmt.Errorf("overflow page %d too small for %d bytes", next, chunk)
		}
		payload = append(payload, ovfl[4:4+chunk]...)
		remaining -= chunk
		next = binary.BigEndian.Uint32(ovfl[0:4])
	}
	return int64(rowid), payload, fromWAL, nil
}
