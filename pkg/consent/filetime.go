package consent

import (
	"encoding/json"
	"time"
)

// Seconds between the FILETIME epoch (1601-01-01) and the Unix epoch.
const filetimeEpochOffset = 11644473600

// Timestamps resolving to a year past this are flagged invalid but
// still converted, so corrupted evidence stays visible.
const maxPlausibleYear = 3000

// Timestamp is a decoded FILETIME value: 100-nanosecond ticks since
// 1601-01-01 UTC. The consent store writes zero for "never recorded"
// (and for blocked attempts), which must stay distinguishable from a
// real timestamp at any date, so absence is modeled explicitly.
type Timestamp struct {
	// Time is the decoded instant in UTC. Zero value when not Present.
	Time time.Time

	// Ticks is the raw stored value.
	Ticks int64

	// Present is false for the zero sentinel: nothing was recorded.
	Present bool

	// Valid is false when the tick count decodes to an implausible
	// instant (before the FILETIME epoch or far future). The decoded
	// Time is still populated for inspection.
	Valid bool
}

// FromFiletime converts a stored tick count into a Timestamp.
func FromFiletime(ticks int64) Timestamp {
	if ticks == 0 {
		return Timestamp{Ticks: 0}
	}
	ts := Timestamp{Ticks: ticks, Present: true}
	secs := ticks/10_000_000 - filetimeEpochOffset
	nanos := (ticks % 10_000_000) * 100
	ts.Time = time.Unix(secs, nanos).UTC()
	ts.Valid = ticks > 0 && ts.Time.Year() <= maxPlausibleYear
	return ts
}

// String renders the timestamp the way the consent-store tooling
// traditionally does: "2006-01-02 15:04:05.000000Z" in UTC, or "0"
// when nothing was recorded.
func (ts Timestamp) String() string {
	if !ts.Present {
		return "0"
	}
	return ts.Time.Format("2006-01-02 15:04:05.000000") + "Z"
}

// MarshalJSON encodes absent timestamps as null and present ones in
// RFC 3339 with the validity flag when cleared.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Present {
		return []byte("null"), nil
	}
	if !ts.Valid {
		return json.Marshal(struct {
			Time  string `json:"time"`
			Ticks int64  `json:"ticks"`
			Valid bool   `json:"valid"`
		}{ts.Time.Format(time.RFC3339Nano), ts.Ticks, false})
	}
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}
