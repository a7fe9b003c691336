package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueKind identifies the storage class of a decoded cell value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Value is one decoded column value. NULL is represented explicitly,
// never as a zero value of another kind, so callers can distinguish
// "stored NULL" from "stored zero".
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
	Blob  []byte
}

// IsNull reports whether the value is a stored NULL.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsInt returns the value as an integer when its storage class is
// integral.
func (v Value) AsInt() (int64, bool) {
	if v.Kind == KindInt {
		return v.Int, true
	}
	return 0, false
}

// AsText returns the value as a string when its storage class is text.
func (v Value) AsText() (string, bool) {
	if v.Kind == KindText {
		return v.Text, true
	}
	return "", false
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindText:
		return v.Text
	default:
		return fmt.Sprintf("x'%x'", v.Blob)
	}
}

// getVarint decodes a SQLite variable-length integer: up to eight
// bytes of seven payload bits each, with a ninth byte contributing a
// full eight bits. Returns the value and the number of bytes consumed,
// or n == 0 when b is exhausted before the varint terminates.
func getVarint(b []byte) (v uint64, n int) {
	for i := 0; i < 8; i++ {
		if i >= len(b) {
			return 0, 0
		}
		c := b[i]
		if c < 0x80 {
			return v<<7 | uint64(c), i + 1
		}
		v = v<<7 | uint64(c&0x7f)
	}
	if len(b) < 9 {
		return 0, 0
	}
	return v<<8 | uint64(b[8]), 9
}

// serialTypeSize returns the content size in bytes for a record header
// serial type.
func serialTypeSize(t uint64) (int, error) {
	switch t {
	case 0, 8, 9:
		return 0, nil
	case 1:
		return 1, nil
	case 2:
		return 2, nil
	case 3:
		return 3, nil
	case 4:
		return 4, nil
	case 5:
		return 6, nil
	case 6, 7:
		return 8, nil
	case 10, 11:
		return 0, fmt.Errorf("reserved serial type %d", t)
	default:
		size := (t - 13) / 2
		if t%2 == 0 {
			size = (t - 12) / 2
		}
		// Computed in uint64 and bounded before the int conversion: a
		// corrupt serial type near 2^64 would wrap negative and defeat
		// the payload range check.
		if size > math.MaxInt32 {
			return 0, fmt.Errorf("serial type %d declares %d content bytes", t, size)
		}
		return int(size), nil
	}
}

// DecodeRecord parses a row payload in the SQLite record format: a
// header of serial-type varints followed by the concatenated column
// contents. Text is assumed UTF-8; the artifact declares encoding 1
// and the caller validates that before decoding begins.
func DecodeRecord(payload []byte) ([]Value, error) {
	hdrLen, n := getVarint(payload)
	if n == 0 || hdrLen > uint64(len(payload)) || hdrLen < uint64(n) {
		return nil, fmt.Errorf("record header length %d outside payload of %d bytes", hdrLen, len(payload))
	}

	var types []uint64
	off := n
	for off < int(hdrLen) {
		t, tn := getVarint(payload[off:int(hdrLen)])
		if tn == 0 {
			return nil, fmt.Errorf("truncated serial type at header offset %d", off)
		}
		types = append(types, t)
		off += tn
	}

	values := make([]Value, 0, len(types))
	body := int(hdrLen)
	for i, t := range types {
		size, err := serialTypeSize(t)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		if body+size > len(payload) {
			return nil, fmt.Errorf("column %d content overruns payload", i)
		}
		content := payload[body : body+size]
		body += size

		switch {
		case t == 0:
			values = append(values, Value{Kind: KindNull})
		case t >= 1 && t <= 6:
			values = append(values, Value{Kind: KindInt, Int: twosComplement(content)})
		case t == 7:
			bits := binary.BigEndian.Uint64(content)
			values = append(values, Value{Kind: KindFloat, Float: math.Float64frombits(bits)})
		case t == 8:
			values = append(values, Value{Kind: KindInt, Int: 0})
		case t == 9:
			values = append(values, Value{Kind: KindInt, Int: 1})
		case t%2 == 0:
			blob := make([]byte, len(content))
			copy(blob, content)
			values = append(values, Value{Kind: KindBlob, Blob: blob})
		default:
			values = append(values, Value{Kind: KindText, Text: string(content)})
		}
	}
	return values, nil
}

// twosComplement sign-extends a big-endian integer of 1 to 8 bytes.
func twosComplement(b []byte) int64 {
	var v int64
	if len(b) > 0 && b[0]&0x80 != 0 {
		v = -1
	}
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
