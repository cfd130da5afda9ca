package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	PadEmpty  rune // · no scene
	PadScene  rune // ■ scene assigned
	PadActive rune // ● last launched scene
	PadQueued rune // ◌ waiting for the beat boundary

	// same states under the cursor
	CursorEmpty  rune // ○
	CursorScene  rune // □
	CursorActive rune // ◉
	CursorQueued rune // ◎

	Beat    rune // ▪ beat indicator, on
	NoBeat  rune // ▫ beat indicator, off
	BarFull rune // █ progress
	BarTail rune // ░ progress remaining
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			PadEmpty:  '·',
			PadScene:  '■',
			PadActive: '●',
			PadQueued: '◌',

			CursorEmpty:  '○',
			CursorScene:  '□',
			CursorActive: '◉',
			CursorQueued: '◎',

			Beat:    '▪',
			NoBeat:  '▫',
			BarFull: '█',
			BarTail: '░',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.45
	RoleAccent  = 0.55
	RoleCursor  = 0.65
	RoleActive  = 0.75
	RoleWarning = 0.85
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(norm))
}

// Hex converts an RGB triple to a lipgloss color
func Hex(c [3]uint8) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
