package midi

import (
	"fmt"
	"strings"
)

// Model is a supported grid controller layout
type Model int

const (
	LaunchpadX Model = iota
	LaunchpadMK2
)

func (m Model) String() string {
	switch m {
	case LaunchpadX:
		return "launchpad-x"
	case LaunchpadMK2:
		return "launchpad-mk2"
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// ParseModel reads the String form used in config files
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "launchpad-x", "lpx", "x":
		return LaunchpadX, nil
	case "launchpad-mk2", "mk2":
		return LaunchpadMK2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedController, s)
}

// DetectModel guesses the model from a port name
func DetectModel(portName string) (Model, error) {
	name := strings.ToLower(portName)
	if !strings.Contains(name, "launchpad") {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedController, portName)
	}
	switch {
	case strings.Contains(name, "mk2"):
		return LaunchpadMK2, nil
	case strings.Contains(name, "lpx"), strings.Contains(name, "launchpad x"):
		return LaunchpadX, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedController, portName)
}

// Pad note layout is shared by both models:
// Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88.
// Side column = notes 19, 29 ... 89. Top row = CC (91-98 on X, 104-111 on MK2).

// GridToNote maps a grid position (0-63) to a pad note
func GridToNote(grid uint8) (uint8, bool) {
	if grid >= 64 {
		return 0, false
	}
	row, col := grid/8, grid%8
	return (row+1)*10 + col + 1, true
}

// NoteToGrid maps a pad note back to a grid position
func NoteToGrid(note uint8) (uint8, bool) {
	row, col := int(note/10)-1, int(note%10)-1
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return 0, false
	}
	return uint8(row*8 + col), true
}

func isSideButton(note uint8) bool {
	return note%10 == 9 && note/10 >= 1 && note/10 <= 8
}

// TopButtons returns the CC numbers of the top control row
func (m Model) TopButtons() []uint8 {
	first := uint8(91)
	if m == LaunchpadMK2 {
		first = 104
	}
	out := make([]uint8, 8)
	for i := range out {
		out[i] = first + uint8(i)
	}
	return out
}

// SideButtons returns the notes of the right-hand scene column
func (m Model) SideButtons() []uint8 {
	out := make([]uint8, 8)
	for i := range out {
		out[i] = uint8(i+1)*10 + 9
	}
	return out
}

func (m Model) isTopButton(cc uint8) bool {
	top := m.TopButtons()
	return cc >= top[0] && cc <= top[len(top)-1]
}

// EncodeColor converts RGB to the model's velocity color value
func (m Model) EncodeColor(rgb [3]uint8) uint8 {
	if m == LaunchpadMK2 {
		r, g, b := rgb[0]/85, rgb[1]/85, rgb[2]/85
		return 16*r + 4*g + b
	}
	return nearestPalette(rgb)
}

// InitSysEx is sent on connect (payload without F0/F7)
func (m Model) InitSysEx() [][]byte {
	if m == LaunchpadMK2 {
		// session layout
		return [][]byte{{0x00, 0x20, 0x29, 0x02, 0x18, 0x22, 0x00}}
	}
	return [][]byte{
		// programmer mode
		{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F},
		// brightness max
		{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F},
	}
}

// ResetSysEx is sent on close
func (m Model) ResetSysEx() []byte {
	if m == LaunchpadMK2 {
		// all LEDs off
		return []byte{0x00, 0x20, 0x29, 0x02, 0x18, 0x0E, 0x00}
	}
	// back to live mode
	return []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0E, 0x00}
}

// Launchpad X palette, approximate RGB for key colors.
// Format: {velocity, R, G, B}
var palette = [][4]uint8{
	{0, 0, 0, 0},         // off
	{5, 255, 0, 0},       // red
	{6, 255, 80, 80},     // bright red
	{7, 180, 60, 60},     // dim red
	{9, 255, 100, 0},     // orange
	{11, 180, 80, 40},    // dim orange
	{13, 255, 200, 0},    // yellow
	{17, 0, 180, 0},      // green
	{19, 0, 100, 0},      // dim green
	{21, 0, 255, 0},      // bright green
	{37, 0, 200, 200},    // cyan
	{43, 40, 60, 120},    // dim blue
	{45, 0, 100, 255},    // blue
	{47, 80, 150, 255},   // bright blue
	{49, 150, 0, 200},    // purple
	{53, 255, 80, 180},   // pink
	{78, 100, 100, 255},  // light blue
	{84, 255, 150, 50},   // bright orange
	{87, 150, 255, 100},  // lime
	{97, 180, 180, 60},   // dim yellow
	{119, 255, 255, 255}, // white
}

func nearestPalette(rgb [3]uint8) uint8 {
	best := uint8(0)
	bestDist := 1 << 30
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range palette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = p[0]
		}
	}
	return best
}
