package scene

import (
	"fmt"
	"strconv"
	"strings"
)

// BeatsPerBar is the bar length assumed by NextBar
const BeatsPerBar = 4

// TriggerKind identifies when a scene activation starts
type TriggerKind int

const (
	TriggerImmediate TriggerKind = iota
	TriggerNextBeat
	TriggerBeats
	TriggerNextBar
)

// TriggerMode is Immediate, NextBeat, Beats(n) or NextBar.
// Beats is only meaningful for TriggerBeats.
type TriggerMode struct {
	Kind  TriggerKind
	Beats uint8
}

var (
	Immediate = TriggerMode{Kind: TriggerImmediate}
	NextBeat  = TriggerMode{Kind: TriggerNextBeat}
	NextBar   = TriggerMode{Kind: TriggerNextBar}
)

// Beats returns a mode that launches on the next multiple of n beats
func Beats(n uint8) TriggerMode {
	return TriggerMode{Kind: TriggerBeats, Beats: n}
}

// Quantize returns the beat boundary a launch waits for.
// ok is false for immediate launches.
func (t TriggerMode) Quantize() (beats uint8, ok bool) {
	switch t.Kind {
	case TriggerNextBeat:
		return 1, true
	case TriggerBeats:
		if t.Beats == 0 {
			return 0, false
		}
		return t.Beats, true
	case TriggerNextBar:
		return BeatsPerBar, true
	}
	return 0, false
}

func (t TriggerMode) String() string {
	switch t.Kind {
	case TriggerNextBeat:
		return "next-beat"
	case TriggerBeats:
		return "beats:" + strconv.Itoa(int(t.Beats))
	case TriggerNextBar:
		return "next-bar"
	}
	return "immediate"
}

// ParseTrigger reads the String form ("immediate", "next-beat", "beats:8", "next-bar")
func ParseTrigger(s string) (TriggerMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "immediate":
		return Immediate, nil
	case "next-beat", "nextbeat", "beat":
		return NextBeat, nil
	case "next-bar", "nextbar", "bar":
		return NextBar, nil
	}
	if rest, found := strings.CutPrefix(s, "beats:"); found {
		n, err := strconv.ParseUint(rest, 10, 8)
		if err != nil {
			return Immediate, fmt.Errorf("invalid trigger %q: %w", s, err)
		}
		return Beats(uint8(n)), nil
	}
	return Immediate, fmt.Errorf("invalid trigger %q", s)
}

func (t TriggerMode) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TriggerMode) UnmarshalText(text []byte) error {
	parsed, err := ParseTrigger(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
