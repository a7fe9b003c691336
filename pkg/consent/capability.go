package consent

import (
	"encoding/json"
	"strconv"
)

// CapabilityKind is the normalized class of a consent-store
// capability. The set is closed with an explicit Other arm: Windows
// adds capability strings across builds, and an unknown value must
// degrade to Other rather than abort the run.
type CapabilityKind int

const (
	CapabilityOther CapabilityKind = iota
	CapabilityCamera
	CapabilityMicrophone
	CapabilityLocation
	CapabilityDocuments
)

func (k CapabilityKind) String() string {
	switch k {
	case CapabilityCamera:
		return "camera"
	case CapabilityMicrophone:
		return "microphone"
	case CapabilityLocation:
		return "location"
	case CapabilityDocuments:
		return "documents"
	default:
		return "other"
	}
}

// Capability is a normalized capability with the raw consent-store
// string preserved. Raw is what the examiner reports; Kind is for
// filtering and triage.
type Capability struct {
	Kind CapabilityKind
	Raw  string
}

func (c Capability) String() string {
	if c.Raw != "" {
		return c.Raw
	}
	return c.Kind.String()
}

// MarshalJSON emits both the normalized kind and the raw store value.
func (c Capability) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Raw  string `json:"raw,omitempty"`
	}{c.Kind.String(), c.Raw})
}

// NormalizeCapability maps a consent-store capability string onto the
// known enumeration. Unrecognized strings map to Other with the raw
// value carried along, never to an error.
func NormalizeCapability(raw string) Capability {
	c := Capability{Kind: CapabilityOther, Raw: raw}
	switch raw {
	case "webcam", "camera":
		c.Kind = CapabilityCamera
	case "microphone":
		c.Kind = CapabilityMicrophone
	case "location":
		c.Kind = CapabilityLocation
	case "documentsLibrary":
		c.Kind = CapabilityDocuments
	}
	return c
}

// AccessStateKind classifies what an event row says about the access.
type AccessStateKind int

const (
	StateNotInUse AccessStateKind = iota
	StateInUse
	StateBlocked
	StateUnknown
)

func (k AccessStateKind) String() string {
	switch k {
	case StateInUse:
		return "in-use"
	case StateBlocked:
		return "blocked"
	case StateUnknown:
		return "unknown"
	default:
		return "not-in-use"
	}
}

// AccessState is the normalized access-state flag. Raw preserves the
// stored AccessBlocked value for flag codes future builds may add.
type AccessState struct {
	Kind AccessStateKind
	Raw  int64
}

func (s AccessState) String() string {
	if s.Kind == StateUnknown {
		return "unknown(" + strconv.FormatInt(s.Raw, 10) + ")"
	}
	return s.Kind.String()
}

// MarshalJSON emits the state in its string form.
func (s AccessState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// deriveState folds the AccessBlocked flag and the timestamp pair into
// one state: a blocked attempt never ran, an event with a start and no
// stop is still in use, anything else has completed.
func deriveState(blocked int64, start, stop Timestamp) AccessState {
	switch blocked {
	case 0:
		if start.Present && !stop.Present {
			return AccessState{Kind: StateInUse}
		}
		return AccessState{Kind: StateNotInUse}
	case 1:
		return AccessState{Kind: StateBlocked, Raw: 1}
	default:
		return AccessState{Kind: StateUnknown, Raw: blocked}
	}
}
