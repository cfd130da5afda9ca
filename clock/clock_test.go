package clock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// beats advances by n beats at 120 BPM
func (f *fakeTime) beats(n float64) {
	f.Advance(time.Duration(n * float64(500*time.Millisecond)))
}

type recorder struct {
	mu    sync.Mutex
	beats []int64
	bars  []int64
}

func (r *recorder) attach(c *Clock) {
	c.OnBeat(func(b int64) {
		r.mu.Lock()
		r.beats = append(r.beats, b)
		r.mu.Unlock()
	})
	c.OnBar(func(b int64) {
		r.mu.Lock()
		r.bars = append(r.bars, b)
		r.mu.Unlock()
	})
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.beats), len(r.bars)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBeatPosition(t *testing.T) {
	ft := newFakeTime()
	c := New(120, WithNow(ft.Now))

	if got := c.BeatPosition(); got != 0 {
		t.Fatalf("beat = %v, want 0", got)
	}
	ft.Advance(time.Second)
	if got := c.BeatPosition(); !near(got, 2) {
		t.Errorf("beat after 1s = %v, want 2", got)
	}

	c.SetTempo(60)
	ft.Advance(time.Second)
	if got := c.BeatPosition(); !near(got, 3) {
		t.Errorf("beat after tempo change = %v, want 3", got)
	}
	if got := c.Tempo(); got != 60 {
		t.Errorf("tempo = %v, want 60", got)
	}
}

func TestPhase(t *testing.T) {
	ft := newFakeTime()
	c := New(120, WithNow(ft.Now))

	ft.beats(5)
	if got := c.Phase(); !near(got, 0.25) {
		t.Errorf("phase at beat 5 = %v, want 0.25", got)
	}
	c.ResetBeatPosition(-1)
	if got := c.Phase(); !near(got, 0.75) {
		t.Errorf("phase at beat -1 = %v, want 0.75", got)
	}
}

func TestSetTempoClamps(t *testing.T) {
	c := New(120)
	c.SetTempo(5)
	if got := c.Tempo(); got != MinTempo {
		t.Errorf("tempo = %v, want %v", got, MinTempo)
	}
	c.SetTempo(5000)
	if got := c.Tempo(); got != MaxTempo {
		t.Errorf("tempo = %v, want %v", got, MaxTempo)
	}
}

type peerSession struct {
	*LocalSession
	peers   int
	enabled bool
}

func (p *peerSession) NumPeers() int  { return p.peers }
func (p *peerSession) Enable(on bool) { p.enabled = on }

func TestSetTempoWithPeersIsAdvisory(t *testing.T) {
	ft := newFakeTime()
	ps := &peerSession{LocalSession: NewLocalSession(128, ft.Now()), peers: 2}
	c := New(120, WithNow(ft.Now), WithSession(ps))

	c.SetTempo(90)
	if got := c.Tempo(); got != 120 {
		t.Errorf("local tempo changed with peers: %v", got)
	}

	c.Enable(true)
	if !ps.enabled || !c.IsEnabled() {
		t.Fatal("enable not forwarded to session")
	}
	// session accepted the proposal, so synced tempo follows it
	if got := c.Tempo(); got != 90 {
		t.Errorf("synced tempo = %v, want 90", got)
	}
	if got := c.NumPeers(); got != 2 {
		t.Errorf("peers = %d, want 2", got)
	}
}

func TestPollFiresOncePerBoundary(t *testing.T) {
	ft := newFakeTime()
	c := New(120, WithNow(ft.Now))
	var r recorder
	r.attach(c)

	c.poll() // primes at beat 0
	ft.beats(0.9)
	c.poll()
	if b, _ := r.counts(); b != 0 {
		t.Fatalf("beats fired before boundary: %v", r.beats)
	}

	ft.beats(0.3) // 1.2
	c.poll()
	c.poll()
	ft.beats(0.1)
	c.poll()
	if b, _ := r.counts(); b != 1 || r.beats[0] != 1 {
		t.Fatalf("beats = %v, want [1]", r.beats)
	}

	ft.beats(2.9) // 4.2, late detection of 2,3,4
	c.poll()
	want := []int64{1, 2, 3, 4}
	if len(r.beats) != len(want) {
		t.Fatalf("beats = %v, want %v", r.beats, want)
	}
	for i := range want {
		if r.beats[i] != want[i] {
			t.Fatalf("beats = %v, want %v", r.beats, want)
		}
	}
	if len(r.bars) != 1 || r.bars[0] != 1 {
		t.Errorf("bars = %v, want [1]", r.bars)
	}
}

func TestPollCapsCatchUp(t *testing.T) {
	ft := newFakeTime()
	c := New(120, WithNow(ft.Now))
	var r recorder
	r.attach(c)

	c.poll()
	ft.beats(100.5)
	c.poll()
	if b, _ := r.counts(); b != maxCatchUp {
		t.Errorf("fired %d beats, want %d", b, maxCatchUp)
	}
	if last := r.beats[len(r.beats)-1]; last != 100 {
		t.Errorf("last beat = %d, want 100", last)
	}
}

func TestPollResyncsOnBackwardJump(t *testing.T) {
	ft := newFakeTime()
	c := New(120, WithNow(ft.Now))
	var r recorder
	r.attach(c)

	c.poll()
	ft.beats(6.5)
	c.poll()
	before, _ := r.counts()

	c.ResetBeatPosition(0.5)
	c.poll()
	after, _ := r.counts()
	if after != before {
		t.Errorf("backward jump fired callbacks: %v", r.beats[before:])
	}
}

func TestStartAtNextQuantizedBoundary(t *testing.T) {
	ft := newFakeTime()
	c := New(120, WithNow(ft.Now))
	var r recorder
	r.attach(c)

	c.poll()
	ft.beats(1.5)
	c.poll()

	next := c.StartAtNextQuantizedBoundary(4)
	if next != 4 {
		t.Fatalf("next = %v, want 4", next)
	}
	if got := c.BeatPosition(); !near(got, 4) {
		t.Errorf("beat = %v, want 4", got)
	}

	c.poll()
	c.poll()
	if len(r.bars) != 1 || r.bars[0] != 1 {
		t.Errorf("bars = %v, want [1]", r.bars)
	}
	if last := r.beats[len(r.beats)-1]; last != 4 {
		t.Errorf("last beat = %d, want 4", last)
	}
}

func TestStartStop(t *testing.T) {
	c := New(MaxTempo, WithPollInterval(time.Millisecond))
	fired := make(chan int64, 64)
	c.OnBeat(func(b int64) {
		select {
		case fired <- b:
		default:
		}
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("no beat callback within 2s at max tempo")
	}

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	c := New(120, WithPollInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	done := c.done
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on cancel")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Errorf("restart after cancel: %v", err)
	}
	c.Stop()
}
