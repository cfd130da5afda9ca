package clock

import (
	"sync"
	"time"
)

// Session is a beat timeline, either free-running or shared with peers.
// Beat positions are in beats; quantum is the phase length used for
// alignment (bar length for most callers).
type Session interface {
	Enable(on bool)
	Tempo() float64
	SetTempo(bpm float64, at time.Time)
	BeatAt(t time.Time, quantum float64) float64
	RequestBeatAt(beat float64, t time.Time, quantum float64)
	NumPeers() int
}

// LocalSession is a free-running timeline with no peers. It is anchored at
// a (time, beat) pair and advances at the current tempo.
type LocalSession struct {
	mu         sync.Mutex
	tempo      float64
	anchorTime time.Time
	anchorBeat float64
}

func NewLocalSession(bpm float64, start time.Time) *LocalSession {
	if bpm <= 0 {
		bpm = DefaultTempo
	}
	return &LocalSession{tempo: bpm, anchorTime: start}
}

func (s *LocalSession) Enable(bool) {}

func (s *LocalSession) NumPeers() int { return 0 }

func (s *LocalSession) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetTempo re-anchors the timeline at t so the beat position stays continuous
func (s *LocalSession) SetTempo(bpm float64, at time.Time) {
	if bpm <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchorBeat = s.beatAt(at)
	s.anchorTime = at
	s.tempo = bpm
}

func (s *LocalSession) BeatAt(t time.Time, _ float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beatAt(t)
}

// RequestBeatAt maps t to beat. With no peers to negotiate with the
// request is applied as-is.
func (s *LocalSession) RequestBeatAt(beat float64, t time.Time, _ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchorTime = t
	s.anchorBeat = beat
}

func (s *LocalSession) beatAt(t time.Time) float64 {
	return s.anchorBeat + t.Sub(s.anchorTime).Seconds()*s.tempo/60
}
