package clock

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTempo        = 120.0
	DefaultBeatsPerBar  = 4
	DefaultPollInterval = 10 * time.Millisecond

	MinTempo = 20.0
	MaxTempo = 999.0

	// boundaries fired per poll after a stall; older crossings are dropped
	maxCatchUp = 8
)

var (
	ErrAlreadyRunning = errors.New("clock already running")
	ErrNotRunning     = errors.New("clock not running")
)

// State is a point-in-time view of the clock
type State struct {
	Enabled bool
	Tempo   float64
	Beat    float64
	Peers   int
}

// Clock provides tempo and beat position from a Session and fires
// callbacks when the beat position crosses beat and bar boundaries.
type Clock struct {
	mu          sync.Mutex
	session     Session
	enabled     bool
	tempo       float64
	beat        float64
	beatsPerBar int
	interval    time.Duration
	now         func() time.Time
	logger      *zap.Logger

	cbMu   sync.Mutex
	onBeat []func(beat int64)
	onBar  []func(bar int64)

	// poll state, owned by the loop
	primed   bool
	lastBeat int64

	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

type Option func(*Clock)

func WithLogger(l *zap.Logger) Option {
	return func(c *Clock) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithBeatsPerBar(n int) Option {
	return func(c *Clock) {
		if n > 0 {
			c.beatsPerBar = n
		}
	}
}

// WithSession replaces the default free-running session, typically with a
// peer-synchronized one
func WithSession(s Session) Option {
	return func(c *Clock) { c.session = s }
}

func New(tempo float64, opts ...Option) *Clock {
	c := &Clock{
		tempo:       clampTempo(tempo),
		beatsPerBar: DefaultBeatsPerBar,
		interval:    DefaultPollInterval,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = NewLocalSession(c.tempo, c.now())
	}
	return c
}

func (c *Clock) quantum() float64 {
	return float64(c.beatsPerBar)
}

// Enable turns peer synchronization on or off
func (c *Clock) Enable(on bool) {
	c.mu.Lock()
	if c.enabled == on {
		c.mu.Unlock()
		return
	}
	c.enabled = on
	c.session.Enable(on)
	c.mu.Unlock()
	c.logger.Info("peer sync", zap.Bool("enabled", on))
}

func (c *Clock) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Tempo returns the session tempo while synced, the local tempo otherwise
func (c *Clock) Tempo() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		c.tempo = c.session.Tempo()
	}
	return c.tempo
}

// SetTempo proposes a tempo to the session. The local tempo only changes
// when no peers are connected; with peers the session negotiates it.
func (c *Clock) SetTempo(bpm float64) {
	bpm = clampTempo(bpm)
	c.mu.Lock()
	c.session.SetTempo(bpm, c.now())
	peers := c.session.NumPeers()
	if peers == 0 {
		c.tempo = bpm
	}
	c.mu.Unlock()
	c.logger.Debug("set tempo", zap.Float64("bpm", bpm), zap.Int("peers", peers))
}

// BeatPosition returns the fractional beat position now
func (c *Clock) BeatPosition() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beat = c.session.BeatAt(c.now(), c.quantum())
	return c.beat
}

// Phase is the position within the current bar, in [0,1)
func (c *Clock) Phase() float64 {
	beat := c.BeatPosition()
	bar := c.quantum()
	m := math.Mod(beat, bar)
	if m < 0 {
		m += bar
	}
	return m / bar
}

func (c *Clock) NumPeers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.NumPeers()
}

func (c *Clock) BeatsPerBar() int {
	return c.beatsPerBar
}

func (c *Clock) State() State {
	beat := c.BeatPosition()
	c.mu.Lock()
	defer c.mu.Unlock()
	tempo := c.tempo
	if c.enabled {
		tempo = c.session.Tempo()
	}
	return State{
		Enabled: c.enabled,
		Tempo:   tempo,
		Beat:    beat,
		Peers:   c.session.NumPeers(),
	}
}

// ResetBeatPosition forces the current time to map to beat
func (c *Clock) ResetBeatPosition(beat float64) {
	c.mu.Lock()
	c.session.RequestBeatAt(beat, c.now(), c.quantum())
	c.beat = beat
	c.lastBeat = int64(math.Ceil(beat)) - 1
	c.primed = true
	c.mu.Unlock()
}

// StartAtNextQuantizedBoundary aligns the timeline so that now maps to the
// next multiple of quantum beats. Returns the beat now lands on.
func (c *Clock) StartAtNextQuantizedBoundary(quantum float64) float64 {
	if quantum <= 0 {
		quantum = c.quantum()
	}
	c.mu.Lock()
	now := c.now()
	current := c.session.BeatAt(now, quantum)
	next := math.Ceil(current/quantum) * quantum
	c.session.RequestBeatAt(next, now, quantum)
	c.beat = next
	// the landing boundary fires on the next poll
	c.lastBeat = int64(next) - 1
	c.primed = true
	c.mu.Unlock()
	return next
}

// OnBeat registers a callback fired once per crossed beat with the absolute beat number
func (c *Clock) OnBeat(fn func(beat int64)) {
	c.cbMu.Lock()
	c.onBeat = append(c.onBeat, fn)
	c.cbMu.Unlock()
}

// OnBar registers a callback fired once per crossed bar with the bar number
func (c *Clock) OnBar(fn func(bar int64)) {
	c.cbMu.Lock()
	c.onBar = append(c.onBar, fn)
	c.cbMu.Unlock()
}

// Start runs the polling loop until ctx is done or Stop is called
func (c *Clock) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.primed = false
	c.stopChan = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stopChan, c.done
	c.mu.Unlock()

	go c.loop(ctx, stop, done)
	c.logger.Debug("clock started", zap.Duration("interval", c.interval))
	return nil
}

// Stop ends the polling loop and waits for it to exit
func (c *Clock) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.running = false
	close(c.stopChan)
	done := c.done
	c.mu.Unlock()

	<-done
	c.logger.Debug("clock stopped")
	return nil
}

func (c *Clock) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

// poll detects newly crossed boundaries and fires callbacks for each,
// outside any lock
func (c *Clock) poll() {
	beat := c.BeatPosition()
	current := int64(math.Floor(beat))

	c.mu.Lock()
	if !c.primed || current < c.lastBeat {
		// first poll or the timeline jumped backwards
		c.primed = true
		c.lastBeat = current
		c.mu.Unlock()
		return
	}
	from := c.lastBeat + 1
	if current-from >= maxCatchUp {
		from = current - maxCatchUp + 1
	}
	c.lastBeat = current
	bpb := int64(c.beatsPerBar)
	c.mu.Unlock()

	if from > current {
		return
	}

	c.cbMu.Lock()
	onBeat := append([]func(int64){}, c.onBeat...)
	onBar := append([]func(int64){}, c.onBar...)
	c.cbMu.Unlock()

	for b := from; b <= current; b++ {
		for _, fn := range onBeat {
			fn(b)
		}
		if floorMod(b, bpb) == 0 {
			bar := floorDiv(b, bpb)
			for _, fn := range onBar {
				fn(bar)
			}
		}
	}
}

func clampTempo(bpm float64) float64 {
	if bpm <= 0 || math.IsNaN(bpm) {
		return DefaultTempo
	}
	return math.Max(MinTempo, math.Min(MaxTempo, bpm))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
