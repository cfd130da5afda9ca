package midi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrPortNotFound          = errors.New("midi port not found")
	ErrUnsupportedController = errors.New("unsupported controller")
)

// Descriptor names a MIDI port. ID is the driver's port number as a string
// and is only used when Name does not match.
type Descriptor struct {
	Name string
	ID   string
}

func (d Descriptor) String() string {
	if d.ID == "" {
		return d.Name
	}
	return d.Name + " #" + d.ID
}

// Output is an open MIDI destination
type Output struct {
	name string
	port drivers.Out
	send func(msg gomidi.Message) error
}

// OpenOutput finds the named output port and opens it for sending
func OpenOutput(d Descriptor) (*Output, error) {
	port, err := findOut(d)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", port.String(), err)
	}
	return &Output{name: port.String(), port: port, send: send}, nil
}

func (o *Output) Name() string {
	return o.name
}

func (o *Output) Send(msg gomidi.Message) error {
	return o.send(msg)
}

func (o *Output) Close() error {
	return o.port.Close()
}

// ListOutputs returns the output ports currently visible to the driver
func ListOutputs() []Descriptor {
	outs := gomidi.GetOutPorts()
	list := make([]Descriptor, len(outs))
	for i, out := range outs {
		list[i] = Descriptor{Name: out.String(), ID: strconv.Itoa(out.Number())}
	}
	return list
}

// ListInputs returns the input ports currently visible to the driver
func ListInputs() []Descriptor {
	ins := gomidi.GetInPorts()
	list := make([]Descriptor, len(ins))
	for i, in := range ins {
		list[i] = Descriptor{Name: in.String(), ID: strconv.Itoa(in.Number())}
	}
	return list
}

// CloseDriver releases the MIDI driver. Call once on exit.
func CloseDriver() {
	gomidi.CloseDriver()
}

// findOut matches exactly, then case-insensitively by substring, then by port number
func findOut(d Descriptor) (drivers.Out, error) {
	outs := gomidi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	i := matchPort(names, d)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPortNotFound, d)
	}
	return outs[i], nil
}

func findIn(name string) (drivers.In, error) {
	ins := gomidi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	i := matchPort(names, Descriptor{Name: name})
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPortNotFound, name)
	}
	return ins[i], nil
}

func matchPort(names []string, d Descriptor) int {
	if d.Name != "" {
		for i, n := range names {
			if n == d.Name {
				return i
			}
		}
		want := strings.ToLower(d.Name)
		for i, n := range names {
			if strings.Contains(strings.ToLower(n), want) {
				return i
			}
		}
	}
	if d.ID != "" {
		if n, err := strconv.Atoi(d.ID); err == nil && n >= 0 && n < len(names) {
			return n
		}
	}
	return -1
}
