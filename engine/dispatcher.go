package engine

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"snap-blaster/midi"
	"snap-blaster/scene"
)

// Output is an open MIDI destination
type Output interface {
	Name() string
	Send(msg gomidi.Message) error
	Close() error
}

// Opener opens an output for a descriptor
type Opener func(d midi.Descriptor) (Output, error)

// OpenPort opens a real MIDI port
func OpenPort(d midi.Descriptor) (Output, error) {
	out, err := midi.OpenOutput(d)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Dispatcher fans control changes out to every open output
type Dispatcher struct {
	mu      sync.RWMutex
	outputs []Output
	open    Opener
	logger  *zap.Logger
}

func NewDispatcher(open Opener, logger *zap.Logger) *Dispatcher {
	if open == nil {
		open = OpenPort
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{open: open, logger: logger}
}

// AddOutput opens d and keeps it. Failures leave existing outputs untouched.
func (d *Dispatcher) AddOutput(desc midi.Descriptor) error {
	out, err := d.open(desc)
	if err != nil {
		return fmt.Errorf("add output %s: %w", desc, err)
	}
	if err := d.Attach(out); err != nil {
		if cerr := out.Close(); cerr != nil {
			d.logger.Warn("close rejected output", zap.String("port", out.Name()), zap.Error(cerr))
		}
		return err
	}
	d.logger.Info("output opened", zap.String("port", out.Name()))
	return nil
}

// Attach adds an already open output
func (d *Dispatcher) Attach(out Output) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.outputs {
		if o.Name() == out.Name() {
			return fmt.Errorf("%w: %s", ErrOutputExists, out.Name())
		}
	}
	d.outputs = append(d.outputs, out)
	return nil
}

// RemoveOutput closes and forgets the named output
func (d *Dispatcher) RemoveOutput(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, o := range d.outputs {
		if o.Name() == name {
			d.outputs = append(d.outputs[:i], d.outputs[i+1:]...)
			return o.Close()
		}
	}
	return fmt.Errorf("%w: %s", ErrOutputNotFound, name)
}

func (d *Dispatcher) Outputs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.outputs))
	for i, o := range d.outputs {
		names[i] = o.Name()
	}
	return names
}

// Send writes a control change to every output. Values are clamped; a
// failing output is logged and skipped.
func (d *Dispatcher) Send(channel, number, value int) {
	msg := gomidi.ControlChange(
		uint8(scene.ClampChannel(channel)),
		uint8(scene.ClampData(number)),
		uint8(scene.ClampData(value)),
	)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, o := range d.outputs {
		if err := o.Send(msg); err != nil {
			d.logger.Warn("send failed",
				zap.String("port", o.Name()),
				zap.Int("channel", channel),
				zap.Int("number", number),
				zap.Error(err))
		}
	}
}

// Close closes every output, returning all close errors combined
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	for _, o := range d.outputs {
		err = multierr.Append(err, o.Close())
	}
	d.outputs = nil
	return err
}
