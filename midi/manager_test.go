package midi

import (
	"sync"
	"testing"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// fakeIn and fakeOut only answer String; the manager never opens them
// because connect is replaced
type fakeIn struct {
	drivers.In
	name string
}

func (f fakeIn) String() string { return f.name }

type fakeOut struct {
	drivers.Out
	name string
}

func (f fakeOut) String() string { return f.name }

type fakeController struct {
	id     string
	model  Model
	mu     sync.Mutex
	closed bool
	events chan ControllerEvent
}

func (f *fakeController) ID() string { return f.id }
func (f *fakeController) Model() Model { return f.model }
func (f *fakeController) Events() <-chan ControllerEvent { return f.events }
func (f *fakeController) SetPadColor(uint8, [3]uint8) error { return nil }
func (f *fakeController) SetButtonColor(uint8, [3]uint8) error { return nil }
func (f *fakeController) Clear() error { return nil }
func (f *fakeController) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newTestManager(ports *[]string) (*DeviceManager, map[string]*fakeController) {
	created := make(map[string]*fakeController)
	dm := NewDeviceManager()
	dm.listPorts = func() ([]drivers.In, []drivers.Out) {
		var ins []drivers.In
		var outs []drivers.Out
		for _, p := range *ports {
			ins = append(ins, fakeIn{name: p})
			outs = append(outs, fakeOut{name: p})
		}
		return ins, outs
	}
	dm.connect = func(id string, model Model, in drivers.In, out drivers.Out) (GridController, error) {
		c := &fakeController{id: id, model: model, events: make(chan ControllerEvent)}
		created[id] = c
		return c, nil
	}
	return dm, created
}

func TestDeviceManager_HotPlug(t *testing.T) {
	ports := []string{"Launchpad X LPX MIDI", "Launchpad X LPX DAW", "IAC Driver Bus 1"}
	dm, created := newTestManager(&ports)

	dm.scan()
	if len(created) != 1 {
		t.Fatalf("connected %d controllers, want 1", len(created))
	}
	ev := <-dm.Events()
	if ev.Type != DeviceConnected || ev.ID != "Launchpad X LPX MIDI" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Controller.Model() != LaunchpadX {
		t.Errorf("model = %v, want launchpad-x", ev.Controller.Model())
	}

	// a second scan with the same ports is quiet
	dm.scan()
	select {
	case ev := <-dm.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	ports = nil
	dm.scan()
	ev = <-dm.Events()
	if ev.Type != DeviceDisconnected {
		t.Fatalf("event = %+v, want disconnect", ev)
	}
	if !created["Launchpad X LPX MIDI"].closed {
		t.Error("controller not closed on disconnect")
	}
	if len(dm.Controllers()) != 0 {
		t.Error("controller still registered")
	}
}

func TestDeviceManager_PinnedModel(t *testing.T) {
	ports := []string{"Launchpad Mini MIDI"}
	dm, created := newTestManager(&ports)

	dm.scan()
	if len(created) != 0 {
		t.Fatal("unknown model should not connect")
	}

	dm.PinModel("launchpad mini", LaunchpadX)
	dm.scan()
	c, ok := created["Launchpad Mini MIDI"]
	if !ok || c.model != LaunchpadX {
		t.Fatalf("pinned model not used: %+v", c)
	}
}
