package scene

import (
	"fmt"
	"time"

	"snap-blaster/curve"
)

// MIDI byte ranges
const (
	MaxChannel = 15
	MaxData    = 127
)

// ParameterValue is a single CC value with optional transition settings.
// Duration is either in beats or in milliseconds; beats win when both are set.
type ParameterValue struct {
	Channel     int    `json:"channel" yaml:"channel"`
	Number      int    `json:"number" yaml:"number"`
	Value       int    `json:"value" yaml:"value"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Transition      bool       `json:"transition,omitempty" yaml:"transition,omitempty"`
	TransitionBeats float64    `json:"transitionBeats,omitempty" yaml:"transitionBeats,omitempty"`
	TransitionMs    int        `json:"transitionMs,omitempty" yaml:"transitionMs,omitempty"`
	Curve           curve.Kind `json:"curve,omitempty" yaml:"curve,omitempty"`
}

// NewParameter creates an immediate (non-transitioning) value, clamped to MIDI ranges
func NewParameter(channel, number, value int) ParameterValue {
	return ParameterValue{
		Channel: ClampChannel(channel),
		Number:  ClampData(number),
		Value:   ClampData(value),
	}
}

// Key returns the "channel:number" map key for this parameter
func (p ParameterValue) Key() string {
	return Key(p.Channel, p.Number)
}

// Clamped returns a copy with channel, number and value forced into range
func (p ParameterValue) Clamped() ParameterValue {
	p.Channel = ClampChannel(p.Channel)
	p.Number = ClampData(p.Number)
	p.Value = ClampData(p.Value)
	return p
}

// WithValue returns a copy carrying a different value
func (p ParameterValue) WithValue(value int) ParameterValue {
	p.Value = ClampData(value)
	return p
}

// WithTransitionBeats enables a beat-based transition, clearing any millisecond duration
func (p ParameterValue) WithTransitionBeats(beats float64, c curve.Kind) ParameterValue {
	p.Transition = true
	p.TransitionBeats = beats
	p.TransitionMs = 0
	p.Curve = c
	return p
}

// WithTransitionMs enables a millisecond transition, clearing any beat duration
func (p ParameterValue) WithTransitionMs(ms int, c curve.Kind) ParameterValue {
	p.Transition = true
	p.TransitionMs = ms
	p.TransitionBeats = 0
	p.Curve = c
	return p
}

// WithMetadata sets the display name and description
func (p ParameterValue) WithMetadata(name, description string) ParameterValue {
	p.Name = name
	if description != "" {
		p.Description = description
	}
	return p
}

// Duration resolves the transition length at the given tempo.
// ok is false when the parameter should be sent immediately.
func (p ParameterValue) Duration(tempo float64) (d time.Duration, ok bool) {
	if !p.Transition {
		return 0, false
	}
	switch {
	case p.TransitionBeats > 0:
		if tempo <= 0 {
			return 0, false
		}
		d = time.Duration(p.TransitionBeats * 60 / tempo * float64(time.Second))
	case p.TransitionMs > 0:
		d = time.Duration(p.TransitionMs) * time.Millisecond
	default:
		return 0, false
	}
	return d, d > 0
}

// Key builds the map key used for parameters and live-value tracking
func Key(channel, number int) string {
	return fmt.Sprintf("%d:%d", ClampChannel(channel), ClampData(number))
}

func ClampChannel(v int) int {
	return clamp(v, 0, MaxChannel)
}

func ClampData(v int) int {
	return clamp(v, 0, MaxData)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
