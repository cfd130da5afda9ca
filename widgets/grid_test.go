package widgets

import (
	"strings"
	"testing"
)

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		p     float64
		width int
		want  string
	}{
		{0, 4, "----"},
		{0.5, 4, "##--"},
		{1, 4, "####"},
		{2, 4, "####"},
		{-1, 4, "----"},
		{0.5, 0, ""},
	}
	for _, tt := range tests {
		if got := RenderProgress(tt.p, tt.width, '#', '-'); got != tt.want {
			t.Errorf("RenderProgress(%v, %d) = %q, want %q", tt.p, tt.width, got, tt.want)
		}
	}
}

func TestRenderGridOrientation(t *testing.T) {
	var cells [64]Cell
	for i := range cells {
		cells[i] = Cell{Symbol: '.'}
	}
	cells[0] = Cell{Symbol: 'A'}  // bottom left
	cells[63] = Cell{Symbol: 'Z'} // top right

	lines := strings.Split(RenderGrid(cells), "\n")
	if len(lines) != 8 {
		t.Fatalf("rows = %d", len(lines))
	}
	if !strings.Contains(lines[0], "Z") || strings.Contains(lines[0], "A") {
		t.Errorf("top row = %q", lines[0])
	}
	if !strings.Contains(lines[7], "A") {
		t.Errorf("bottom row = %q", lines[7])
	}
}

func TestRenderKeyLine(t *testing.T) {
	got := RenderKeyLine([]KeyBinding{{"q", "quit"}, {"s", "stop"}})
	if got != "q:quit  s:stop" {
		t.Errorf("got %q", got)
	}
}
