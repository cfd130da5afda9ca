package engine

import (
	"time"

	"snap-blaster/curve"
	"snap-blaster/scene"
)

// Command is applied by the engine loop, in queue order
type Command interface {
	command()
}

// SendImmediate writes a value now, canceling any transition on that key
type SendImmediate struct {
	Channel, Number, Value int
}

// StartTransition interpolates a single value
type StartTransition struct {
	Channel, Number int
	From, To        int
	Duration        time.Duration
	Curve           curve.Kind
}

// ActivateScene applies a scene, optionally waiting for the next
// multiple of Quantize beats. Quantize 0 means immediate.
type ActivateScene struct {
	Scene    *scene.Scene
	Quantize uint8
}

// MorphScenes transitions from one scene to another over Duration
type MorphScenes struct {
	From, To *scene.Scene
	Duration time.Duration
	Curve    curve.Kind
}

type StopAllTransitions struct{}

type SetTempo struct {
	BPM float64
}

type Shutdown struct{}

// Sync closes Done when the loop reaches it; everything queued before it
// has been applied by then
type Sync struct {
	Done chan struct{}
}

func (SendImmediate) command()      {}
func (StartTransition) command()    {}
func (ActivateScene) command()      {}
func (MorphScenes) command()        {}
func (StopAllTransitions) command() {}
func (SetTempo) command()           {}
func (Shutdown) command()           {}
func (Sync) command()               {}
