package engine

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"snap-blaster/clock"
	"snap-blaster/curve"
	"snap-blaster/scene"
)

// Clock is the tempo and beat source the scheduler reads
type Clock interface {
	Tempo() float64
	BeatPosition() float64
}

// Send is a single value the dispatcher should write
type Send struct {
	Channel, Number, Value int
}

// TransitionInfo describes an in-flight transition
type TransitionInfo struct {
	Channel, Number int
	From, To, Value int
	Progress        float64
	Curve           curve.Kind
}

type transition struct {
	channel, number int
	from, to        int
	start           time.Time
	duration        time.Duration
	curve           curve.Kind

	last    int
	emitted bool
}

// value computes the interpolated value at now and whether the transition is done
func (t *transition) value(now time.Time) (int, float64, bool) {
	p := float64(now.Sub(t.start)) / float64(t.duration)
	if p >= 1 {
		return t.to, 1, true
	}
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	eased := t.curve.Apply(p)
	v := math.Round(float64(t.from) + float64(t.to-t.from)*eased)
	return scene.ClampData(int(v)), p, false
}

type pendingActivation struct {
	scene    *scene.Scene
	boundary float64
}

// Scheduler owns every in-flight transition and the last value written
// for each channel/number. All methods are safe for concurrent use, but
// the engine loop is the only writer in practice.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	tempo   float64
	logger  *zap.Logger
	active  map[string]*transition
	live    map[string]int
	pending *pendingActivation
}

// NewScheduler creates a scheduler. clk may be nil, in which case the
// scheduler runs at its own tempo and quantized activations start at once.
func NewScheduler(clk Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:  clk,
		tempo:  clock.DefaultTempo,
		logger: logger,
		active: make(map[string]*transition),
		live:   make(map[string]int),
	}
}

func (s *Scheduler) tempoNow() float64 {
	if s.clock != nil {
		if t := s.clock.Tempo(); t > 0 {
			return t
		}
	}
	return s.tempo
}

// SetTempo sets the fallback tempo used without a clock
func (s *Scheduler) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	s.mu.Lock()
	s.tempo = bpm
	s.mu.Unlock()
}

// Start registers or replaces the transition for channel/number.
// A non-positive duration yields an immediate send of to.
func (s *Scheduler) Start(channel, number, from, to int, d time.Duration, c curve.Kind, now time.Time) []Send {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(channel, number, from, to, d, c, now)
}

func (s *Scheduler) start(channel, number, from, to int, d time.Duration, c curve.Kind, now time.Time) []Send {
	channel, number = scene.ClampChannel(channel), scene.ClampData(number)
	from, to = scene.ClampData(from), scene.ClampData(to)
	if d <= 0 {
		return []Send{s.immediate(channel, number, to)}
	}
	s.active[scene.Key(channel, number)] = &transition{
		channel:  channel,
		number:   number,
		from:     from,
		to:       to,
		start:    now,
		duration: d,
		curve:    c,
	}
	return nil
}

// Immediate records a direct write and cancels any transition on that key
func (s *Scheduler) Immediate(channel, number, value int) Send {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.immediate(scene.ClampChannel(channel), scene.ClampData(number), scene.ClampData(value))
}

func (s *Scheduler) immediate(channel, number, value int) Send {
	key := scene.Key(channel, number)
	delete(s.active, key)
	s.live[key] = value
	return Send{Channel: channel, Number: number, Value: value}
}

// current is the best known value for a key: the last value a running
// transition emitted, else the last value written, else 0
func (s *Scheduler) current(key string) int {
	if t, ok := s.active[key]; ok && t.emitted {
		return t.last
	}
	return s.live[key]
}

// ActivateScene applies every value of sc. With quantize > 0 the whole
// scene waits for the next multiple of quantize beats; a newer activation
// replaces a pending one.
func (s *Scheduler) ActivateScene(sc *scene.Scene, quantize uint8, now time.Time) []Send {
	if sc == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.logger.Info("quantized activation superseded",
			zap.String("scene", s.pending.scene.Name),
			zap.String("by", sc.Name))
		s.pending = nil
	}

	if quantize > 0 && s.clock != nil {
		q := float64(quantize)
		beat := s.clock.BeatPosition()
		s.pending = &pendingActivation{
			scene:    sc,
			boundary: (math.Floor(beat/q) + 1) * q,
		}
		s.logger.Debug("scene queued",
			zap.String("scene", sc.Name),
			zap.Float64("beat", beat),
			zap.Float64("boundary", s.pending.boundary))
		return nil
	}
	return s.applyScene(sc, now)
}

func (s *Scheduler) applyScene(sc *scene.Scene, now time.Time) []Send {
	tempo := s.tempoNow()
	var sends []Send
	for _, p := range sc.Params() {
		p = p.Clamped()
		if d, ok := p.Duration(tempo); ok {
			from := s.current(p.Key())
			sends = append(sends, s.start(p.Channel, p.Number, from, p.Value, d, p.Curve, now)...)
			continue
		}
		sends = append(sends, s.immediate(p.Channel, p.Number, p.Value))
	}
	return sends
}

// Morph transitions every key of to. Keys shared with from start at
// from's value; keys only in to start at the current value. Keys only in
// from are left alone.
func (s *Scheduler) Morph(from, to *scene.Scene, d time.Duration, c curve.Kind, now time.Time) []Send {
	if to == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var sends []Send
	for _, end := range to.Params() {
		end = end.Clamped()
		start := s.current(end.Key())
		if from != nil {
			if p, ok := from.Get(end.Channel, end.Number); ok {
				start = p.Value
			}
		}
		sends = append(sends, s.start(end.Channel, end.Number, start, end.Value, d, c, now)...)
	}
	return sends
}

// Tick advances every transition to now. A due quantized activation is
// applied first so its transitions start on this tick.
func (s *Scheduler) Tick(now time.Time) []Send {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sends []Send
	if s.pending != nil {
		if s.clock == nil || s.clock.BeatPosition() >= s.pending.boundary {
			sc := s.pending.scene
			s.pending = nil
			sends = append(sends, s.applyScene(sc, now)...)
		}
	}

	if len(s.active) == 0 {
		return sends
	}

	keys := make([]string, 0, len(s.active))
	for k := range s.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t := s.active[k]
		v, _, done := t.value(now)
		if done {
			// always send the exact end value once
			delete(s.active, k)
			s.live[k] = v
			sends = append(sends, Send{Channel: t.channel, Number: t.number, Value: v})
			continue
		}
		if t.emitted && v == t.last {
			continue
		}
		t.last = v
		t.emitted = true
		s.live[k] = v
		sends = append(sends, Send{Channel: t.channel, Number: t.number, Value: v})
	}
	return sends
}

// StopAll cancels every transition and any pending activation without
// sending anything. Returns how many transitions were canceled.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.active)
	clear(s.active)
	s.pending = nil
	return n
}

func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Pending reports the scene waiting for a beat boundary, if any
func (s *Scheduler) Pending() (*scene.Scene, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, 0, false
	}
	return s.pending.scene, s.pending.boundary, true
}

// Value returns the last value written for channel/number
func (s *Scheduler) Value(channel, number int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live[scene.Key(channel, number)]
	return v, ok
}

// Snapshot lists in-flight transitions ordered by channel, number
func (s *Scheduler) Snapshot(now time.Time) []TransitionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TransitionInfo, 0, len(s.active))
	for _, t := range s.active {
		v, p, _ := t.value(now)
		out = append(out, TransitionInfo{
			Channel:  t.channel,
			Number:   t.number,
			From:     t.from,
			To:       t.to,
			Value:    v,
			Progress: p,
			Curve:    t.curve,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Number < out[j].Number
	})
	return out
}
