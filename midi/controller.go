package midi

// EventKind identifies what happened on a controller
type EventKind int

const (
	PadPressed EventKind = iota
	PadReleased
	ButtonPressed
	ButtonReleased
)

func (k EventKind) String() string {
	switch k {
	case PadPressed:
		return "pad-pressed"
	case PadReleased:
		return "pad-released"
	case ButtonPressed:
		return "button-pressed"
	case ButtonReleased:
		return "button-released"
	}
	return "unknown"
}

// ControllerEvent is sent when a pad or button changes state.
// For pads ID is the grid position (0-63, row-major from the bottom left);
// for buttons it is the raw note/CC number.
type ControllerEvent struct {
	Kind     EventKind
	ID       uint8
	Velocity uint8
}

// GridController is the capability surface the scene launcher needs from a
// hardware grid. Implementations translate to their own wire protocol.
type GridController interface {
	ID() string
	Model() Model

	// Input events from the controller
	Events() <-chan ControllerEvent

	// Output to the controller
	SetPadColor(grid uint8, rgb [3]uint8) error
	SetButtonColor(button uint8, rgb [3]uint8) error
	Clear() error

	// Lifecycle
	Close() error
}

// LEDUpdate is a single pending pad color change
type LEDUpdate struct {
	Grid  uint8
	Color [3]uint8
}

// Common pad colors
var (
	ColorOff    = [3]uint8{0, 0, 0}
	ColorRed    = [3]uint8{255, 0, 0}
	ColorGreen  = [3]uint8{0, 255, 0}
	ColorDim    = [3]uint8{0, 100, 0}
	ColorBlue   = [3]uint8{0, 100, 255}
	ColorYellow = [3]uint8{255, 200, 0}
	ColorOrange = [3]uint8{255, 100, 0}
	ColorPurple = [3]uint8{150, 0, 200}
	ColorCyan   = [3]uint8{0, 200, 200}
	ColorWhite  = [3]uint8{255, 255, 255}
)
