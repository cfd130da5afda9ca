package scene

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"snap-blaster/curve"
)

func TestNewParameter_Clamps(t *testing.T) {
	p := NewParameter(20, 200, -5)
	if p.Channel != 15 || p.Number != 127 || p.Value != 0 {
		t.Errorf("got %d:%d=%d, want 15:127=0", p.Channel, p.Number, p.Value)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name  string
		p     ParameterValue
		tempo float64
		want  time.Duration
		ok    bool
	}{
		{"immediate", NewParameter(0, 7, 100), 120, 0, false},
		{"beats", NewParameter(0, 7, 100).WithTransitionBeats(4, curve.Linear), 120, 2 * time.Second, true},
		{"beats at 60", NewParameter(0, 7, 100).WithTransitionBeats(1, curve.Linear), 60, time.Second, true},
		{"ms", NewParameter(0, 7, 100).WithTransitionMs(250, curve.SCurve), 120, 250 * time.Millisecond, true},
		{"zero length", ParameterValue{Transition: true}, 120, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.p.Duration(tt.tempo)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Duration(%v) = %v,%v want %v,%v", tt.tempo, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTransitionUnitsAreExclusive(t *testing.T) {
	p := NewParameter(0, 1, 10).WithTransitionMs(500, curve.Linear).WithTransitionBeats(2, curve.Exponential)
	if p.TransitionMs != 0 || p.TransitionBeats != 2 || p.Curve != curve.Exponential {
		t.Errorf("unexpected transition fields: %+v", p)
	}
	p = p.WithTransitionMs(300, curve.Linear)
	if p.TransitionBeats != 0 || p.TransitionMs != 300 {
		t.Errorf("unexpected transition fields: %+v", p)
	}
}

func TestScene_OneValuePerKey(t *testing.T) {
	s := New("a", "A")
	s.Add(NewParameter(0, 7, 10))
	s.Add(NewParameter(0, 7, 90))
	s.Add(NewParameter(1, 7, 5))
	if len(s.Values) != 2 {
		t.Fatalf("len = %d, want 2", len(s.Values))
	}
	if p, _ := s.Get(0, 7); p.Value != 90 {
		t.Errorf("value = %d, want 90", p.Value)
	}
	if _, ok := s.Remove(1, 7); !ok {
		t.Error("remove failed")
	}
	if _, ok := s.Get(1, 7); ok {
		t.Error("value still present after remove")
	}
}

func TestScene_ParamsOrdered(t *testing.T) {
	s := New("a", "A").AddAll(
		NewParameter(1, 2, 0),
		NewParameter(0, 74, 0),
		NewParameter(0, 7, 0),
	)
	got := s.Params()
	want := []string{"0:7", "0:74", "1:2"}
	for i, p := range got {
		if p.Key() != want[i] {
			t.Errorf("Params()[%d] = %s, want %s", i, p.Key(), want[i])
		}
	}
}

func TestScene_CloneIsDeep(t *testing.T) {
	s := New("a", "A").Add(NewParameter(0, 7, 10)).SetGridPosition(3, &[3]uint8{1, 2, 3})
	c := s.Clone()
	s.Add(NewParameter(0, 7, 99))
	*s.GridPosition = 9
	s.Color[0] = 200
	if p, _ := c.Get(0, 7); p.Value != 10 {
		t.Errorf("clone value = %d, want 10", p.Value)
	}
	if *c.GridPosition != 3 || c.Color[0] != 1 {
		t.Errorf("clone grid/color changed: %d %v", *c.GridPosition, *c.Color)
	}
}

func TestScene_SetGridPositionIgnoresOutOfRange(t *testing.T) {
	s := New("a", "A").SetGridPosition(64, nil)
	if s.GridPosition != nil {
		t.Errorf("grid position = %d, want nil", *s.GridPosition)
	}
}

func TestScene_Duplicate(t *testing.T) {
	s := New("a", "A").Add(NewParameter(0, 7, 10)).SetGridPosition(3, nil)
	d := s.Duplicate("b", "B")
	if d.ID != "b" || d.Name != "B" || d.GridPosition != nil {
		t.Errorf("unexpected duplicate %+v", d)
	}
	if len(d.Values) != 1 {
		t.Errorf("duplicate lost values")
	}
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		mode  TriggerMode
		beats uint8
		ok    bool
	}{
		{Immediate, 0, false},
		{NextBeat, 1, true},
		{Beats(8), 8, true},
		{Beats(0), 0, false},
		{NextBar, 4, true},
	}
	for _, tt := range tests {
		beats, ok := tt.mode.Quantize()
		if beats != tt.beats || ok != tt.ok {
			t.Errorf("%s.Quantize() = %d,%v want %d,%v", tt.mode, beats, ok, tt.beats, tt.ok)
		}
		parsed, err := ParseTrigger(tt.mode.String())
		if err != nil || parsed != tt.mode {
			t.Errorf("ParseTrigger(%q) = %v, %v", tt.mode.String(), parsed, err)
		}
	}
	if _, err := ParseTrigger("sometimes"); err == nil {
		t.Error("expected error")
	}
}

func TestProject_Grid(t *testing.T) {
	p := NewProject("Test", "me")
	s := p.NewScene("Intro")

	if err := p.AssignToGrid(s.ID, 5); err != nil {
		t.Fatal(err)
	}
	got, ok := p.SceneAtGrid(5)
	if !ok || got.ID != s.ID {
		t.Fatalf("SceneAtGrid(5) = %v, %v", got, ok)
	}
	if err := p.AssignToGrid(s.ID, 100); !errors.Is(err, ErrInvalidGridPosition) {
		t.Errorf("err = %v, want ErrInvalidGridPosition", err)
	}
	if err := p.AssignToGrid("missing", 10); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("err = %v, want ErrSceneNotFound", err)
	}

	// moving a scene frees its old pad
	if err := p.AssignToGrid(s.ID, 6); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.SceneAtGrid(5); ok {
		t.Error("pad 5 still assigned after move")
	}

	p.RemoveScene(s.ID)
	if _, ok := p.SceneAtGrid(6); ok {
		t.Error("grid assignment survived scene removal")
	}
}

func TestProject_Definition(t *testing.T) {
	p := NewProject("Test", "")
	d := NewDefinition(0, 74, "Cutoff")
	d.UseTransitions = true
	d.Default = 64
	p.AddDefinition(d)

	got, ok := p.Definition(0, 74)
	if !ok || got.Name != "Cutoff" {
		t.Fatalf("Definition(0,74) = %+v, %v", got, ok)
	}
	v := got.NewParameter(-1)
	if v.Value != 64 || v.Name != "Cutoff" || !v.Transition {
		t.Errorf("NewParameter(-1) = %+v", v)
	}
}

func TestProject_DuplicateIsIndependent(t *testing.T) {
	p := NewProject("A", "")
	s := p.NewScene("one")
	s.Add(NewParameter(0, 1, 1))
	d := p.Duplicate("B")
	if d.ID == p.ID {
		t.Error("duplicate kept id")
	}
	p.Scenes[s.ID].Add(NewParameter(0, 1, 50))
	if v, _ := d.Scenes[s.ID].Get(0, 1); v.Value != 1 {
		t.Errorf("duplicate shares scene data")
	}
}

func TestScene_Encoding(t *testing.T) {
	s := New("a", "A").WithTrigger(Beats(2)).Add(
		NewParameter(0, 7, 100).WithTransitionBeats(4, curve.SCurve),
	)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var fromJSON Scene
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatal(err)
	}

	data, err = yaml.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var fromYAML Scene
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatal(err)
	}

	for _, got := range []Scene{fromJSON, fromYAML} {
		if got.Trigger != Beats(2) {
			t.Errorf("trigger = %v", got.Trigger)
		}
		p, ok := got.Get(0, 7)
		if !ok || p.Curve != curve.SCurve || p.TransitionBeats != 4 {
			t.Errorf("param = %+v", p)
		}
	}
}

func TestProject_Normalize(t *testing.T) {
	p := &Project{
		Scenes: map[string]*Scene{"x": {Name: "X"}},
		Grid:   map[int]string{1: "x", 2: "gone", 99: "x"},
	}
	p.Normalize()
	if p.Scenes["x"].ID != "x" {
		t.Error("scene id not filled")
	}
	if len(p.Grid) != 1 {
		t.Errorf("grid = %v, want only pad 1", p.Grid)
	}
	if s, ok := p.SceneAtGrid(1); !ok || *s.GridPosition != 1 {
		t.Error("grid position not restored")
	}
	if p.Settings.DefaultTempo != 120 {
		t.Errorf("default tempo = %v", p.Settings.DefaultTempo)
	}
}
