package sqlite

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeRecordStorageClasses(t *testing.T) {
	floatBits := make([]byte, 8)
	binary.BigEndian.PutUint64(floatBits, math.Float64bits(1.5))

	payload := makeRecord(
		nullCol(),
		col{1, []byte{0xFF}},             // -1
		col{2, []byte{0x01, 0x00}},       // 256
		col{4, []byte{0, 0x01, 0, 0}},    // 65536
		col{6, append(make([]byte, 7), 9)}, // 9 as 8-byte int
		col{7, floatBits},
		col{8, nil}, // constant 0
		col{9, nil}, // constant 1
		textCol("hello"),
		col{18, []byte{1, 2, 3}}, // 3-byte blob
	)

	values, err := DecodeRecord(payload)
	if err != nil {
		t.Fatalf("DecodeRecord returned error: %v", err)
	}
	if len(values) != 10 {
		t.Fatalf("expected 10 values, got %d", len(values))
	}

	if !values[0].IsNull() {
		t.Fatalf("expected NULL at column 0")
	}
	for i, want := range map[int]int64{1: -1, 2: 256, 3: 65536, 4: 9, 6: 0, 7: 1} {
		got, ok := values[i].AsInt()
		if !ok || got != want {
			t.Fatalf("column %d: expected int %d, got %+v", i, want, values[i])
		}
	}
	if values[5].Kind != KindFloat || values[5].Float != 1.5 {
		t.Fatalf("column 5: expected float 1.5, got %+v", values[5])
	}
	if s, ok := values[8].AsText(); !ok || s != "hello" {
		t.Fatalf("column 8: expected text hello, got %+v", values[8])
	}
	if values[9].Kind != KindBlob || len(values[9].Blob) != 3 || values[9].Blob[2] != 3 {
		t.Fatalf("column 9: expected 3-byte blob, got %+v", values[9])
	}
}

func TestDecodeRecordNullIsNotZero(t *testing.T) {
	payload := makeRecord(nullCol(), col{8, nil})
	values, err := DecodeRecord(payload)
	if err != nil {
		t.Fatalf("DecodeRecord returned error: %v", err)
	}
	if !values[0].IsNull() {
		t.Fatalf("stored NULL decoded as non-NULL")
	}
	if _, ok := values[0].AsInt(); ok {
		t.Fatalf("NULL must not read as an integer")
	}
	if v, ok := values[1].AsInt(); !ok || v != 0 || values[1].IsNull() {
		t.Fatalf("stored zero decoded as %+v", values[1])
	}
}

func TestDecodeRecordHeaderOverruns(t *testing.T) {
	if _, err := DecodeRecord([]byte{0x05, 0x01}); err == nil {
		t.Fatalf("expected error for header longer than payload")
	}
	if _, err := DecodeRecord(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestDecodeRecordReservedSerialType(t *testing.T) {
	if _, err := DecodeRecord([]byte{0x02, 10}); err == nil {
		t.Fatalf("expected error for reserved serial type 10")
	}
}

func TestDecodeRecordOversizedSerialType(t *testing.T) {
	// A serial type near 2^64 declares an impossible content size.
	payload := append([]byte{10}, putVarint(math.MaxUint64)...)
	if _, err := DecodeRecord(payload); err == nil {
		t.Fatalf("expected error for oversized serial type")
	}
}

func TestDecodeRecordContentOverruns(t *testing.T) {
	// Declares an 8-byte integer but carries only two content bytes.
	if _, err := DecodeRecord([]byte{0x02, 6, 0x01, 0x02}); err == nil {
		t.Fatalf("expected error for content overrunning payload")
	}
}

func TestVarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, 1 << 35, 1 << 60, math.MaxUint64} {
		enc := putVarint(v)
		got, n := getVarint(enc)
		if n != len(enc) || got != v {
			t.Fatalf("varint %d: round-tripped to %d over %d of %d bytes", v, got, n, len(enc))
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	if _, n := getVarint(nil); n != 0 {
		t.Fatalf("expected n=0 for empty input")
	}
	// Eight continuation bytes with no terminator.
	trunc := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}
	if _, n := getVarint(trunc); n != 0 {
		t.Fatalf("expected n=0 for truncated nine-byte varint")
	}
}

func TestTwosComplement(t *testing.T) {
	cases := []struct {
		in   []byte
		want int64
	}{
		{[]byte{0x7F}, 127},
		{[]byte{0xFF}, -1},
		{[]byte{0x80, 0x00}, -32768},
		{[]byte{0x00, 0x80}, 128},
		{[]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}, -2},
	}
	for _, c := range cases {
		if got := twosComplement(c.in); got != c.want {
			t.Fatalf("twosComplement(% x) = %d, want %d", c.in, got, c.want)
		}
	}
}
