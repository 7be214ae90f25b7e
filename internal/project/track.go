package project

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Kind tags the audio role of a track.
type Kind int

const (
	KindOther Kind = iota
	KindInstrument
	KindSample
	KindAutomation
	KindPattern
)

var kindNames = map[Kind]string{
	KindOther:      "other",
	KindInstrument: "instrument",
	KindSample:     "sample",
	KindAutomation: "automation",
	KindPattern:    "pattern",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "other"
}

// ParseKind maps a kind name to its tag. Unknown names map to KindOther.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "instrument":
		return KindInstrument
	case "sample":
		return KindSample
	case "automation":
		return KindAutomation
	case "pattern", "bb", "beat_bassline", "beatbassline":
		return KindPattern
	default:
		return KindOther
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	if k == nil {
		return fmt.Errorf("unmarshal kind into nil pointer")
	}
	*k = ParseKind(string(text))
	return nil
}

// Track is a named, mute-able project track. The muted flag may be read from
// renderer goroutines while the export supervisor flips it.
type Track struct {
	name  string
	kind  Kind
	muted atomic.Bool
}

// NewTrack constructs a track with the given initial mute state.
func NewTrack(name string, kind Kind, muted bool) *Track {
	t := &Track{name: name, kind: kind}
	t.muted.Store(muted)
	return t
}

func (t *Track) Name() string { return t.name }

func (t *Track) Kind() Kind { return t.kind }

func (t *Track) Muted() bool { return t.muted.Load() }

func (t *Track) SetMuted(muted bool) { t.muted.Store(muted) }

func (t *Track) String() string {
	return fmt.Sprintf("%s(%s)", t.name, t.kind)
}

// TrackSet holds the project's top-level tracks and the tracks of the
// beat/bassline pattern container, both in container order.
type TrackSet struct {
	Main     []*Track
	Patterns []*Track
}

// All returns main tracks followed by pattern tracks.
func (s TrackSet) All() []*Track {
	out := make([]*Track, 0, len(s.Main)+len(s.Patterns))
	out = append(out, s.Main...)
	out = append(out, s.Patterns...)
	return out
}
