package midi

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
)

type sentLog struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (s *sentLog) send(msg gomidi.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, append([]byte(nil), msg...))
	return nil
}

func (s *sentLog) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs
}

func TestGridNoteMapping(t *testing.T) {
	tests := []struct {
		grid uint8
		note uint8
	}{
		{0, 11}, {7, 18}, {8, 21}, {63, 88}, {27, 44},
	}
	for _, tt := range tests {
		note, ok := GridToNote(tt.grid)
		if !ok || note != tt.note {
			t.Errorf("GridToNote(%d) = %d,%v want %d", tt.grid, note, ok, tt.note)
		}
		grid, ok := NoteToGrid(tt.note)
		if !ok || grid != tt.grid {
			t.Errorf("NoteToGrid(%d) = %d,%v want %d", tt.note, grid, ok, tt.grid)
		}
	}
	for _, note := range []uint8{0, 10, 19, 90, 91, 99} {
		if _, ok := NoteToGrid(note); ok {
			t.Errorf("NoteToGrid(%d) should be outside the grid", note)
		}
	}
	if _, ok := GridToNote(64); ok {
		t.Error("GridToNote(64) should fail")
	}
}

func TestEncodeColor(t *testing.T) {
	if got := LaunchpadMK2.EncodeColor(ColorWhite); got != 63 {
		t.Errorf("MK2 white = %d, want 63", got)
	}
	if got := LaunchpadMK2.EncodeColor([3]uint8{255, 0, 0}); got != 48 {
		t.Errorf("MK2 red = %d, want 48", got)
	}
	if got := LaunchpadX.EncodeColor(ColorGreen); got != 21 {
		t.Errorf("X green = %d, want 21", got)
	}
	if got := LaunchpadX.EncodeColor(ColorOff); got != 0 {
		t.Errorf("X off = %d, want 0", got)
	}
}

func TestDetectModel(t *testing.T) {
	tests := []struct {
		name string
		want Model
		ok   bool
	}{
		{"Launchpad X LPX MIDI", LaunchpadX, true},
		{"Launchpad MK2", LaunchpadMK2, true},
		{"Launchpad Pro", 0, false},
		{"IAC Driver Bus 1", 0, false},
	}
	for _, tt := range tests {
		got, err := DetectModel(tt.name)
		if (err == nil) != tt.ok || (tt.ok && got != tt.want) {
			t.Errorf("DetectModel(%q) = %v, %v", tt.name, got, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnsupportedController) {
			t.Errorf("DetectModel(%q) err = %v, want ErrUnsupportedController", tt.name, err)
		}
	}
}

func TestLaunchpad_InitSendsSysEx(t *testing.T) {
	var log sentLog
	lp := newLaunchpad("lp", LaunchpadX, log.send)
	lp.init()

	msgs := log.all()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	want := []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F, 0xF7}
	if !bytes.Equal(msgs[0], want) {
		t.Errorf("programmer mode = % X, want % X", msgs[0], want)
	}
}

func TestLaunchpad_Events(t *testing.T) {
	lp := newLaunchpad("lp", LaunchpadX, nil)

	lp.handleMessage(gomidi.NoteOn(0, 11, 100))
	lp.handleMessage(gomidi.NoteOff(0, 88))
	lp.handleMessage(gomidi.ControlChange(0, 91, 127))
	lp.handleMessage(gomidi.ControlChange(0, 91, 0))
	lp.handleMessage(gomidi.ControlChange(0, 104, 127)) // MK2 top row, ignored on X
	lp.handleMessage(gomidi.NoteOn(0, 19, 90))

	want := []ControllerEvent{
		{Kind: PadPressed, ID: 0, Velocity: 100},
		{Kind: PadReleased, ID: 63},
		{Kind: ButtonPressed, ID: 91, Velocity: 127},
		{Kind: ButtonReleased, ID: 91},
		{Kind: ButtonPressed, ID: 19, Velocity: 90},
	}
	for i, w := range want {
		select {
		case got := <-lp.Events():
			if got != w {
				t.Errorf("event %d = %+v, want %+v", i, got, w)
			}
		default:
			t.Fatalf("missing event %d (%+v)", i, w)
		}
	}
	select {
	case ev := <-lp.Events():
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}

func TestLaunchpad_SetPadColor(t *testing.T) {
	var log sentLog
	lp := newLaunchpad("lp", LaunchpadMK2, log.send)

	if err := lp.SetPadColor(63, ColorWhite); err != nil {
		t.Fatal(err)
	}
	if err := lp.SetButtonColor(104, ColorWhite); err != nil {
		t.Fatal(err)
	}
	if err := lp.SetPadColor(64, ColorWhite); err == nil {
		t.Error("expected error for grid 64")
	}

	msgs := log.all()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	if !bytes.Equal(msgs[0], []byte{0x90, 88, 63}) {
		t.Errorf("pad = % X", msgs[0])
	}
	if !bytes.Equal(msgs[1], []byte{0xB0, 104, 63}) {
		t.Errorf("button = % X", msgs[1])
	}
}

func TestLaunchpad_CloseClearsAndResets(t *testing.T) {
	var log sentLog
	lp := newLaunchpad("lp", LaunchpadX, log.send)

	lp.Close()
	lp.Close()

	msgs := log.all()
	if len(msgs) != 64+8+8+1 {
		t.Fatalf("sent %d messages, want %d", len(msgs), 64+8+8+1)
	}
	last := msgs[len(msgs)-1]
	if last[0] != 0xF0 || last[len(last)-1] != 0xF7 {
		t.Errorf("last message is not SysEx: % X", last)
	}
	if _, ok := <-lp.Events(); ok {
		t.Error("events channel not closed")
	}
}

func TestLaunchpad_ClearReportsButtonFailures(t *testing.T) {
	unplugged := errors.New("unplugged")
	lp := newLaunchpad("lp", LaunchpadX, func(gomidi.Message) error { return unplugged })

	err := lp.Clear()
	if !errors.Is(err, unplugged) {
		t.Fatalf("Clear = %v", err)
	}
	want := 1 + len(LaunchpadX.TopButtons()) + len(LaunchpadX.SideButtons())
	if n := len(multierr.Errors(err)); n != want {
		t.Errorf("errors = %d, want %d", n, want)
	}

	lp.Close()
	if _, ok := <-lp.Events(); ok {
		t.Error("events channel not closed after failed reset")
	}
}
