package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"snap-blaster/clock"
	"snap-blaster/curve"
	"snap-blaster/engine"
	"snap-blaster/scene"
	"snap-blaster/session"
	"snap-blaster/theme"
	"snap-blaster/widgets"
)

// refresh rate for transition progress and the beat display
const frameInterval = 50 * time.Millisecond

// maxTransitionRows limits the transitions list
const maxTransitionRows = 8

// Engine is the command surface the UI drives
type Engine interface {
	SetTempo(bpm float64) error
	StopAll() error
	Morph(from, to *scene.Scene, d time.Duration, c curve.Kind) error
	Transitions() []engine.TransitionInfo
	Outputs() []string
}

// Clock is the tempo/beat source shown in the header
type Clock interface {
	State() clock.State
	Enable(on bool)
	BeatsPerBar() int
}

type Model struct {
	Launcher   *session.Launcher
	Engine     Engine
	Clock      Clock
	Theme      *theme.Theme
	MorphBeats float64

	row, col int // cursor, row 0 at the bottom
	status   string
	quitting bool
}

type UpdateMsg struct{}

type frameMsg time.Time

func NewModel(l *session.Launcher, e Engine, clk Clock, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Launcher:   l,
		Engine:     e,
		Clock:      clk,
		Theme:      th,
		MorphBeats: 4,
		row:        7,
	}
}

func ListenForUpdates(l *session.Launcher) tea.Cmd {
	return func() tea.Msg {
		<-l.UpdateChan
		return UpdateMsg{}
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForUpdates(m.Launcher), frame())
}

func (m Model) cursor() int {
	return m.row*8 + m.col
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Launcher)

	case frameMsg:
		return m, frame()
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "h", "left":
		m.col = max(0, m.col-1)
	case "l", "right":
		m.col = min(7, m.col+1)
	case "k", "up":
		m.row = min(7, m.row+1)
	case "j", "down":
		m.row = max(0, m.row-1)

	case " ", "enter":
		if err := m.Launcher.Trigger(m.cursor()); err != nil {
			m.status = fmt.Sprintf("pad %d: %v", m.cursor(), err)
		} else if sc, ok := m.Launcher.Project().SceneAtGrid(m.cursor()); ok {
			m.status = "launched " + sc.Name
		}

	case "s":
		if err := m.Engine.StopAll(); err != nil {
			m.status = err.Error()
		} else {
			m.status = "stopped all transitions"
		}

	case "+", "=":
		m.nudgeTempo(1)
	case "-", "_":
		m.nudgeTempo(-1)

	case "L":
		st := m.Clock.State()
		m.Clock.Enable(!st.Enabled)
		if st.Enabled {
			m.status = "link off"
		} else {
			m.status = "link on"
		}

	case "m":
		m.status = m.morphToCursor()
	}
	return m, nil
}

func (m *Model) nudgeTempo(delta float64) {
	bpm := math.Round(m.Clock.State().Tempo) + delta
	if err := m.Engine.SetTempo(bpm); err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("tempo %.0f", bpm)
}

// morphToCursor morphs from the active scene to the one under the cursor
func (m *Model) morphToCursor() string {
	p := m.Launcher.Project()
	if p == nil {
		return "no project"
	}
	to, ok := p.SceneAtGrid(m.cursor())
	if !ok {
		return "no scene under cursor"
	}
	from, ok := p.Scene(m.Launcher.Active())
	if !ok {
		return "nothing active to morph from"
	}

	tempo := m.Clock.State().Tempo
	if tempo <= 0 {
		tempo = clock.DefaultTempo
	}
	d := time.Duration(m.MorphBeats * 60 / tempo * float64(time.Second))
	if err := m.Engine.Morph(from, to, d, curve.SCurve); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("morph %s -> %s over %g beats", from.Name, to.Name, m.MorphBeats)
}

func (m Model) cells() [scene.GridSize]widgets.Cell {
	sym := m.Theme.Symbols
	grid := m.Launcher.Grid()
	muted := m.Theme.Palette.Lookup(theme.RoleMuted)

	var cells [scene.GridSize]widgets.Cell
	for pos, pad := range grid {
		under := pos == m.cursor()
		c := widgets.Cell{Color: pad.Color}
		switch {
		case pad.Queued:
			c.Symbol = pick(under, sym.CursorQueued, sym.PadQueued)
			c.Color = m.Theme.Palette.Lookup(theme.RoleWarning)
		case pad.Active:
			c.Symbol = pick(under, sym.CursorActive, sym.PadActive)
			c.Bold = true
		case pad.SceneID != "":
			c.Symbol = pick(under, sym.CursorScene, sym.PadScene)
		default:
			c.Symbol = pick(under, sym.CursorEmpty, sym.PadEmpty)
			c.Color = muted
		}
		if under && pad.SceneID == "" {
			c.Color = m.Theme.Palette.Lookup(theme.RoleCursor)
		}
		cells[pos] = c
	}
	return cells
}

func pick(cond bool, a, b rune) rune {
	if cond {
		return a
	}
	return b
}

func (m Model) header() string {
	st := m.Clock.State()
	bpb := max(1, m.Clock.BeatsPerBar())

	bar := int(math.Floor(st.Beat/float64(bpb))) + 1
	inBar := int(math.Floor(st.Beat)) % bpb
	if inBar < 0 {
		inBar += bpb
	}
	var beats strings.Builder
	for i := 0; i < bpb; i++ {
		beats.WriteRune(pick(i == inBar, m.Theme.Symbols.Beat, m.Theme.Symbols.NoBeat))
	}

	link := "local"
	if st.Enabled {
		link = fmt.Sprintf("link:%d", st.Peers)
	}

	name := "(no project)"
	if p := m.Launcher.Project(); p != nil {
		name = p.Name
	}
	return fmt.Sprintf("snap-blaster  %s  %6.1fbpm  %s  bar %d %s", name, st.Tempo, link, bar, beats.String())
}

func (m Model) transitions() string {
	infos := m.Engine.Transitions()
	if len(infos) == 0 {
		return ""
	}
	sym := m.Theme.Symbols
	var out strings.Builder
	for i, t := range infos {
		if i == maxTransitionRows {
			fmt.Fprintf(&out, "  … %d more\n", len(infos)-i)
			break
		}
		fmt.Fprintf(&out, "  ch%-2d cc%-3d %3d→%-3d %s %3d %s\n",
			t.Channel+1, t.Number, t.From, t.To,
			widgets.RenderProgress(t.Progress, 16, sym.BarFull, sym.BarTail),
			t.Value, t.Curve)
	}
	return out.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header()))
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderGrid(m.cells()))
	out.WriteString("\n\n")

	if p := m.Launcher.Project(); p != nil {
		if sc, ok := p.SceneAtGrid(m.cursor()); ok {
			out.WriteString(fmt.Sprintf("%s  %s  %d values\n", sc.Name, sc.Trigger, len(sc.Values)))
		} else {
			out.WriteString(dimStyle.Render(fmt.Sprintf("pad %d empty", m.cursor())) + "\n")
		}
	}

	if outs := m.Engine.Outputs(); len(outs) > 0 {
		out.WriteString(dimStyle.Render("out: "+strings.Join(outs, ", ")) + "\n")
	} else {
		out.WriteString(dimStyle.Render("out: none") + "\n")
	}

	out.WriteString(m.transitions())

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}

	help := widgets.RenderKeyLine([]widgets.KeyBinding{
		{Key: "hjkl", Desc: "move"},
		{Key: "space", Desc: "launch"},
		{Key: "m", Desc: "morph"},
		{Key: "s", Desc: "stop"},
		{Key: "+/-", Desc: "tempo"},
		{Key: "L", Desc: "link"},
		{Key: "q", Desc: "quit"},
	})
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(help))
	return out.String()
}
