package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"snap-blaster/debug"
	"snap-blaster/midi"
	"snap-blaster/scene"
)

// LED refresh rate
const ledFPS = 30

// Pad colors
var (
	colorAssigned = midi.ColorGreen
	colorActive   = midi.ColorWhite
	colorQueued   = midi.ColorYellow
	colorOff      = midi.ColorOff
	colorStop     = midi.ColorRed
)

// Activator is the part of the engine the launcher drives
type Activator interface {
	ActivateScene(sc *scene.Scene, quantize uint8) error
	StopAll() error
}

// pendingReporter is implemented by engines that expose a queued launch
type pendingReporter interface {
	PendingScene() (*scene.Scene, bool)
}

// Pad is the render state of one grid position
type Pad struct {
	SceneID string
	Name    string
	Color   [3]uint8
	Active  bool
	Queued  bool
}

// Launcher maps grid pads to project scenes, triggers them on the engine
// and keeps controller LEDs in sync
type Launcher struct {
	mu          sync.RWMutex
	project     *scene.Project
	engine      Activator
	controllers map[string]midi.GridController
	prevLEDs    map[string]map[uint8][3]uint8 // per controller, for diffing
	stopLit     map[string]bool
	active      string
	ledDirty    bool
	logger      *zap.Logger

	// Notify TUI of updates
	UpdateChan chan struct{}
}

type Option func(*Launcher)

func WithLogger(l *zap.Logger) Option {
	return func(s *Launcher) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewLauncher(p *scene.Project, engine Activator, opts ...Option) *Launcher {
	s := &Launcher{
		project:     p,
		engine:      engine,
		controllers: make(map[string]midi.GridController),
		prevLEDs:    make(map[string]map[uint8][3]uint8),
		stopLit:     make(map[string]bool),
		ledDirty:    true,
		logger:      zap.NewNop(),
		UpdateChan:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Launcher) Project() *scene.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// SetProject swaps the project, e.g. after the file changed on disk. The
// active scene is kept if it still exists.
func (s *Launcher) SetProject(p *scene.Project) {
	s.mu.Lock()
	s.project = p
	if p == nil {
		s.active = ""
	} else if _, ok := p.Scene(s.active); !ok {
		s.active = ""
	}
	s.ledDirty = true
	s.mu.Unlock()
	s.notify()
}

// Active returns the id of the last launched scene
func (s *Launcher) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Trigger launches the scene on a grid position
func (s *Launcher) Trigger(pos int) error {
	s.mu.RLock()
	p := s.project
	s.mu.RUnlock()
	if p == nil {
		return scene.ErrSceneNotFound
	}
	sc, ok := p.SceneAtGrid(pos)
	if !ok {
		return scene.ErrSceneNotFound
	}
	return s.Launch(sc)
}

// Launch activates sc using its trigger mode, falling back to the
// project's default quantization for immediate scenes
func (s *Launcher) Launch(sc *scene.Scene) error {
	q, ok := sc.Trigger.Quantize()
	s.mu.RLock()
	if !ok && s.project != nil {
		q = s.project.Settings.Quantize
	}
	s.mu.RUnlock()

	if err := s.engine.ActivateScene(sc, q); err != nil {
		return err
	}
	s.logger.Info("scene launched",
		zap.String("scene", sc.Name),
		zap.String("trigger", sc.Trigger.String()),
		zap.Uint8("quantize", q))

	s.mu.Lock()
	s.active = sc.ID
	s.ledDirty = true
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Launcher) StopAll() error {
	return s.engine.StopAll()
}

// AddController starts routing events from c and renders the grid on it
func (s *Launcher) AddController(ctx context.Context, c midi.GridController) {
	s.mu.Lock()
	s.controllers[c.ID()] = c
	s.prevLEDs[c.ID()] = make(map[uint8][3]uint8) // reset state - diff will handle clearing
	s.stopLit[c.ID()] = false
	s.ledDirty = true
	s.mu.Unlock()

	debug.Log("ctrl", "controller added %s (%s)", c.ID(), c.Model())
	go s.readEvents(ctx, c)
}

func (s *Launcher) RemoveController(id string) {
	s.mu.Lock()
	delete(s.controllers, id)
	delete(s.prevLEDs, id)
	delete(s.stopLit, id)
	s.mu.Unlock()
	debug.Log("ctrl", "controller removed %s", id)
}

// HandleDevices adds and removes controllers as the device manager reports them
func (s *Launcher) HandleDevices(ctx context.Context, events <-chan midi.DeviceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case midi.DeviceConnected:
				s.AddController(ctx, ev.Controller)
			case midi.DeviceDisconnected:
				s.RemoveController(ev.ID)
			}
			s.notify()
		}
	}
}

func (s *Launcher) readEvents(ctx context.Context, c midi.GridController) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			s.HandleEvent(c, ev)
		}
	}
}

// HandleEvent reacts to a controller event. Pads launch scenes; the last
// top-row button stops all transitions.
func (s *Launcher) HandleEvent(c midi.GridController, ev midi.ControllerEvent) {
	switch ev.Kind {
	case midi.PadPressed:
		if err := s.Trigger(int(ev.ID)); err != nil {
			debug.Log("ctrl", "pad %d: %v", ev.ID, err)
		}
	case midi.ButtonPressed:
		top := c.Model().TopButtons()
		if ev.ID == top[len(top)-1] {
			if err := s.StopAll(); err != nil {
				s.logger.Warn("stop all failed", zap.Error(err))
			}
		}
	}
}

// Grid returns the render state of all 64 pads
func (s *Launcher) Grid() [scene.GridSize]Pad {
	s.mu.RLock()
	p := s.project
	active := s.active
	s.mu.RUnlock()

	var queued string
	if pr, ok := s.engine.(pendingReporter); ok {
		if sc, ok := pr.PendingScene(); ok {
			queued = sc.ID
		}
	}

	var grid [scene.GridSize]Pad
	if p == nil {
		return grid
	}
	for pos := range grid {
		sc, ok := p.SceneAtGrid(pos)
		if !ok {
			continue
		}
		color := colorAssigned
		if sc.Color != nil {
			color = *sc.Color
		}
		grid[pos] = Pad{
			SceneID: sc.ID,
			Name:    sc.Name,
			Color:   color,
			Active:  sc.ID == active && queued != sc.ID,
			Queued:  sc.ID == queued,
		}
	}
	return grid
}

// RenderLEDs maps the grid to pad colors
func (s *Launcher) RenderLEDs() map[uint8][3]uint8 {
	grid := s.Grid()
	leds := make(map[uint8][3]uint8, len(grid))
	for pos, pad := range grid {
		switch {
		case pad.Queued:
			leds[uint8(pos)] = colorQueued
		case pad.Active:
			leds[uint8(pos)] = colorActive
		case pad.SceneID != "":
			leds[uint8(pos)] = pad.Color
		}
	}
	return leds
}

// Run refreshes controller LEDs at a fixed rate until ctx is done
func (s *Launcher) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.clearControllers()
			return
		case <-ticker.C:
			s.mu.Lock()
			dirty := s.ledDirty
			s.ledDirty = false
			s.mu.Unlock()

			// a queued launch changes color on its own when it fires
			if _, pending := s.pending(); dirty || pending {
				s.flushLEDs()
			}
		}
	}
}

func (s *Launcher) pending() (*scene.Scene, bool) {
	if pr, ok := s.engine.(pendingReporter); ok {
		return pr.PendingScene()
	}
	return nil, false
}

// flushLEDs sends only changed LEDs to each controller
func (s *Launcher) flushLEDs() {
	newLEDs := s.RenderLEDs()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.controllers {
		prev := s.prevLEDs[id]
		var updates []midi.LEDUpdate

		for pos, color := range newLEDs {
			if old, ok := prev[pos]; !ok || old != color {
				updates = append(updates, midi.LEDUpdate{Grid: pos, Color: color})
			}
		}
		// Clear LEDs that are no longer present
		for pos := range prev {
			if _, ok := newLEDs[pos]; !ok {
				updates = append(updates, midi.LEDUpdate{Grid: pos, Color: colorOff})
			}
		}
		if !s.stopLit[id] {
			top := c.Model().TopButtons()
			if err := c.SetButtonColor(top[len(top)-1], colorStop); err != nil {
				debug.Log("led", "stop button %s: %v", id, err)
			} else {
				s.stopLit[id] = true
			}
		}

		if len(updates) > 0 {
			debug.Log("led", "flushLEDs %s: batch=%d prev=%d", id, len(updates), len(prev))
			sendLEDs(c, updates)
		}

		next := make(map[uint8][3]uint8, len(newLEDs))
		for pos, color := range newLEDs {
			next[pos] = color
		}
		s.prevLEDs[id] = next
	}
}

type batchSetter interface {
	SetPadColors(updates []midi.LEDUpdate) error
}

func sendLEDs(c midi.GridController, updates []midi.LEDUpdate) {
	if b, ok := c.(batchSetter); ok {
		if err := b.SetPadColors(updates); err != nil {
			debug.Log("led", "batch %s: %v", c.ID(), err)
		}
		return
	}
	for _, u := range updates {
		if err := c.SetPadColor(u.Grid, u.Color); err != nil {
			debug.Log("led", "pad %d %s: %v", u.Grid, c.ID(), err)
		}
	}
}

func (s *Launcher) clearControllers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.controllers {
		if err := c.Clear(); err != nil {
			debug.Log("led", "clear %s: %v", id, err)
		}
		s.prevLEDs[id] = make(map[uint8][3]uint8)
		s.stopLit[id] = false
	}
}

// notify wakes the TUI without blocking
func (s *Launcher) notify() {
	select {
	case s.UpdateChan <- struct{}{}:
	default:
	}
}
