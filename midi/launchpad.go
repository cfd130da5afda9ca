package midi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"snap-blaster/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/multierr"
)

var ledSendCount uint64

// Launchpad drives a Novation Launchpad X or MK2 over gomidi
type Launchpad struct {
	id       string
	model    Model
	outPort  drivers.Out
	send     func(msg gomidi.Message) error
	stopFunc func()

	events    chan ControllerEvent
	closeOnce sync.Once
}

// NewLaunchpad opens the ports, puts the device in programmer mode and
// starts listening. Either port may be nil.
func NewLaunchpad(id string, model Model, inPort drivers.In, outPort drivers.Out) (*Launchpad, error) {
	var send func(gomidi.Message) error
	if outPort != nil {
		s, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		send = s
	}

	lp := newLaunchpad(id, model, send)
	lp.outPort = outPort
	lp.init()

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			lp.handleMessage(msg)
		})
		if err != nil {
			lp.Close()
			return nil, fmt.Errorf("open input: %w", err)
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

// OpenLaunchpad finds the input and output ports by name and connects
func OpenLaunchpad(portName string, model Model) (*Launchpad, error) {
	in, err := findIn(portName)
	if err != nil {
		return nil, err
	}
	out, err := findOut(Descriptor{Name: portName})
	if err != nil {
		return nil, err
	}
	return NewLaunchpad(in.String(), model, in, out)
}

func newLaunchpad(id string, model Model, send func(gomidi.Message) error) *Launchpad {
	return &Launchpad{
		id:     id,
		model:  model,
		send:   send,
		events: make(chan ControllerEvent, 32),
	}
}

func (lp *Launchpad) init() {
	if lp.send == nil {
		return
	}
	for _, msg := range lp.model.InitSysEx() {
		if err := lp.send(gomidi.SysEx(msg)); err != nil {
			debug.Log("launchpad", "init %s: %v", lp.id, err)
		}
	}
}

func (lp *Launchpad) ID() string {
	return lp.id
}

func (lp *Launchpad) Model() Model {
	return lp.model
}

func (lp *Launchpad) Events() <-chan ControllerEvent {
	return lp.events
}

func (lp *Launchpad) handleMessage(msg gomidi.Message) {
	var channel, note, velocity uint8
	var cc, value uint8

	switch {
	case msg.GetNoteOn(&channel, &note, &velocity):
		// velocity 0 is a release
		lp.noteEvent(note, velocity)
	case msg.GetNoteOff(&channel, &note, &velocity):
		lp.noteEvent(note, 0)
	case msg.GetControlChange(&channel, &cc, &value):
		if !lp.model.isTopButton(cc) {
			return
		}
		if value > 0 {
			lp.emit(ControllerEvent{Kind: ButtonPressed, ID: cc, Velocity: value})
		} else {
			lp.emit(ControllerEvent{Kind: ButtonReleased, ID: cc})
		}
	}
}

func (lp *Launchpad) noteEvent(note, velocity uint8) {
	if grid, ok := NoteToGrid(note); ok {
		if velocity > 0 {
			lp.emit(ControllerEvent{Kind: PadPressed, ID: grid, Velocity: velocity})
		} else {
			lp.emit(ControllerEvent{Kind: PadReleased, ID: grid})
		}
		return
	}
	if isSideButton(note) {
		if velocity > 0 {
			lp.emit(ControllerEvent{Kind: ButtonPressed, ID: note, Velocity: velocity})
		} else {
			lp.emit(ControllerEvent{Kind: ButtonReleased, ID: note})
		}
	}
}

// emit never blocks the driver callback; events are dropped when nobody reads
func (lp *Launchpad) emit(ev ControllerEvent) {
	select {
	case lp.events <- ev:
	default:
		debug.Log("launchpad", "dropped %s %d", ev.Kind, ev.ID)
	}
}

func (lp *Launchpad) SetPadColor(grid uint8, rgb [3]uint8) error {
	if lp.send == nil {
		return nil
	}
	note, ok := GridToNote(grid)
	if !ok {
		return fmt.Errorf("grid position %d out of range", grid)
	}
	atomic.AddUint64(&ledSendCount, 1)
	return lp.send(gomidi.NoteOn(0, note, lp.model.EncodeColor(rgb)))
}

// SetButtonColor lights a top-row (CC) or side-column (note) button
func (lp *Launchpad) SetButtonColor(button uint8, rgb [3]uint8) error {
	if lp.send == nil {
		return nil
	}
	color := lp.model.EncodeColor(rgb)
	atomic.AddUint64(&ledSendCount, 1)
	if isSideButton(button) {
		return lp.send(gomidi.NoteOn(0, button, color))
	}
	return lp.send(gomidi.ControlChange(0, button, color))
}

// SetPadColors sends a batch of pad updates as individual NoteOn messages
func (lp *Launchpad) SetPadColors(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}

	var firstErr error
	for _, u := range updates {
		if err := lp.SetPadColor(u.Grid, u.Color); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	count := atomic.LoadUint64(&ledSendCount)
	if count%100 < uint64(len(updates)) {
		debug.Log("lp-send", "batch count=%d (this batch=%d)", count, len(updates))
	}
	return firstErr
}

// Clear turns off every pad and button
func (lp *Launchpad) Clear() error {
	if lp.send == nil {
		return nil
	}
	updates := make([]LEDUpdate, 64)
	for i := range updates {
		updates[i] = LEDUpdate{Grid: uint8(i)}
	}
	err := lp.SetPadColors(updates)
	for _, b := range lp.model.TopButtons() {
		err = multierr.Append(err, lp.SetButtonColor(b, ColorOff))
	}
	for _, b := range lp.model.SideButtons() {
		err = multierr.Append(err, lp.SetButtonColor(b, ColorOff))
	}
	return err
}

func (lp *Launchpad) Close() error {
	lp.closeOnce.Do(func() {
		if lp.send != nil {
			if err := lp.Clear(); err != nil {
				debug.Log("launchpad", "clear %s: %v", lp.id, err)
			}
			if err := lp.send(gomidi.SysEx(lp.model.ResetSysEx())); err != nil {
				debug.Log("launchpad", "reset %s: %v", lp.id, err)
			}
		}
		if lp.stopFunc != nil {
			lp.stopFunc()
		}
		close(lp.events)
	})
	return nil
}
