package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"snap-blaster/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller GridController
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of grid controllers
type DeviceManager struct {
	controllers map[string]GridController
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration

	// models pins a model for ports whose name does not identify it
	models map[string]Model

	// port listing and controller construction, replaced in tests
	listPorts func() ([]drivers.In, []drivers.Out)
	connect   func(id string, model Model, in drivers.In, out drivers.Out) (GridController, error)
}

func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]GridController),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		models:      make(map[string]Model),
		listPorts: func() ([]drivers.In, []drivers.Out) {
			return gomidi.GetInPorts(), gomidi.GetOutPorts()
		},
		connect: func(id string, model Model, in drivers.In, out drivers.Out) (GridController, error) {
			return NewLaunchpad(id, model, in, out)
		},
	}
}

// PinModel forces the model used for ports whose name contains portName
func (dm *DeviceManager) PinModel(portName string, m Model) {
	dm.mu.Lock()
	dm.models[strings.ToLower(portName)] = m
	dm.mu.Unlock()
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]GridController {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]GridController, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) modelFor(name string) (Model, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	lower := strings.ToLower(name)
	for pinned, m := range dm.models {
		if strings.Contains(lower, pinned) {
			return m, true
		}
	}
	m, err := DetectModel(name)
	return m, err == nil
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		in, out := dm.listPorts()
		ch <- portsResult{inPorts: in, outPorts: out}
	}()

	var inPorts []drivers.In
	var outPorts []drivers.Out

	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		// driver is hung - skip this scan
		debug.Log("devices", "port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)

	for i, inPort := range inPorts {
		id := inPort.String()
		if !isGridPort(id) {
			continue
		}
		model, ok := dm.modelFor(id)
		if !ok {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		// Find matching output port
		var outPort drivers.Out
		for j, op := range outPorts {
			if strings.EqualFold(op.String(), id) {
				outPort = outPorts[j]
				break
			}
		}

		c, err := dm.connect(id, model, inPorts[i], outPort)
		if err != nil {
			debug.Log("devices", "connect %s failed: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()

		debug.Log("devices", "connected %s (%s)", id, model)
		dm.events <- DeviceEvent{Type: DeviceConnected, Controller: c, ID: id}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		dm.controllers[id].Close()
		delete(dm.controllers, id)
		dm.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]GridController)
}

// isGridPort skips the DAW/DIN ports a Launchpad also exposes
func isGridPort(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") &&
		(strings.Contains(name, "midi") || strings.Contains(name, "mk2")) &&
		!strings.Contains(name, "daw")
}
