package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"snap-blaster/clock"
	"snap-blaster/curve"
	"snap-blaster/engine"
	"snap-blaster/scene"
	"snap-blaster/session"
)

type morphCall struct {
	from, to string
	d        time.Duration
}

type fakeEngine struct {
	mu          sync.Mutex
	activated   []string
	stops       int
	tempo       float64
	morphs      []morphCall
	transitions []engine.TransitionInfo
}

func (f *fakeEngine) ActivateScene(sc *scene.Scene, q uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, sc.ID)
	return nil
}

func (f *fakeEngine) StopAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeEngine) SetTempo(bpm float64) error {
	f.tempo = bpm
	return nil
}

func (f *fakeEngine) Morph(from, to *scene.Scene, d time.Duration, c curve.Kind) error {
	f.morphs = append(f.morphs, morphCall{from.ID, to.ID, d})
	return nil
}

func (f *fakeEngine) Transitions() []engine.TransitionInfo { return f.transitions }
func (f *fakeEngine) Outputs() []string                    { return []string{"IAC"} }

type fakeClock struct {
	st clock.State
}

func (f *fakeClock) State() clock.State { return f.st }
func (f *fakeClock) Enable(on bool)     { f.st.Enabled = on }
func (f *fakeClock) BeatsPerBar() int   { return 4 }

func newTestModel(t *testing.T) (Model, *fakeEngine, *fakeClock) {
	t.Helper()
	p := scene.NewProject("Set", "")
	p.AddScene(scene.New("a", "Alpha"))
	p.AddScene(scene.New("b", "Bravo"))
	if err := p.AssignToGrid("a", 56); err != nil { // top left
		t.Fatal(err)
	}
	if err := p.AssignToGrid("b", 57); err != nil {
		t.Fatal(err)
	}
	eng := &fakeEngine{}
	clk := &fakeClock{st: clock.State{Tempo: 120, Beat: 5.5}}
	l := session.NewLauncher(p, eng)
	return NewModel(l, eng, clk, nil), eng, clk
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		if k == " " {
			msg = tea.KeyMsg{Type: tea.KeySpace}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestLaunchAndMorph(t *testing.T) {
	m, eng, _ := newTestModel(t)

	m = press(m, " ")
	if len(eng.activated) != 1 || eng.activated[0] != "a" {
		t.Fatalf("activated = %v", eng.activated)
	}
	if m.Launcher.Active() != "a" {
		t.Errorf("active = %q", m.Launcher.Active())
	}

	m = press(m, "l", "m")
	if len(eng.morphs) != 1 {
		t.Fatalf("morphs = %v (status %q)", eng.morphs, m.status)
	}
	got := eng.morphs[0]
	if got.from != "a" || got.to != "b" || got.d != 2*time.Second {
		t.Errorf("morph = %+v, want a->b over 2s", got)
	}
}

func TestMorphWithoutActive(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = press(m, "m")
	if len(eng.morphs) != 0 || m.status == "" {
		t.Errorf("morph without an active scene: %v %q", eng.morphs, m.status)
	}
}

func TestCursorBounds(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = press(m, "k", "h", "h")
	if m.row != 7 || m.col != 0 {
		t.Errorf("cursor = %d,%d", m.row, m.col)
	}
	m = press(m, "j", "j", "l")
	if m.cursor() != 41 {
		t.Errorf("cursor = %d, want 41", m.cursor())
	}
}

func TestTempoStopAndLink(t *testing.T) {
	m, eng, clk := newTestModel(t)
	m = press(m, "+")
	if eng.tempo != 121 {
		t.Errorf("tempo = %v", eng.tempo)
	}
	m = press(m, "-")
	if eng.tempo != 119 {
		t.Errorf("tempo = %v", eng.tempo)
	}
	m = press(m, "s")
	if eng.stops != 1 {
		t.Errorf("stops = %d", eng.stops)
	}
	press(m, "L")
	if !clk.st.Enabled {
		t.Error("link not enabled")
	}
}

func TestView(t *testing.T) {
	m, eng, _ := newTestModel(t)
	eng.transitions = []engine.TransitionInfo{{Channel: 0, Number: 74, From: 0, To: 100, Value: 50, Progress: 0.5}}

	v := m.View()
	for _, want := range []string{"Set", "120.0bpm", "bar 2", "Alpha", "IAC", "cc74"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || next.(Model).View() != "" {
		t.Error("q did not quit")
	}
}
