package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"snap-blaster/curve"
	"snap-blaster/midi"
	"snap-blaster/scene"
)

const (
	DefaultBatchSize = 10
	DefaultInterval  = time.Millisecond

	idlePollInterval = 10 * time.Millisecond
)

// State of the engine loop
type State int32

const (
	Created State = iota
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Engine runs the command loop: drain commands, tick transitions, send.
// Every public method except AddOutput only enqueues and never blocks on
// the loop.
type Engine struct {
	queue      *Queue
	scheduler  *Scheduler
	dispatcher *Dispatcher
	clock      Clock
	opener     Opener
	logger     *zap.Logger
	now        func() time.Time
	batchSize  int
	interval   time.Duration
	observer   func(Send)

	state    atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the tempo/beat source used for beat durations and
// quantized launches
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithOpener replaces how outputs are opened
func WithOpener(o Opener) Option {
	return func(e *Engine) { e.opener = o }
}

// WithObserver is called from the loop for every value sent. It must not block.
func WithObserver(fn func(Send)) Option {
	return func(e *Engine) { e.observer = fn }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		queue:     NewQueue(),
		logger:    zap.NewNop(),
		now:       time.Now,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.scheduler = NewScheduler(e.clock, e.logger.Named("scheduler"))
	e.dispatcher = NewDispatcher(e.opener, e.logger.Named("dispatcher"))
	return e
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start launches the loop goroutine
func (e *Engine) Start() error {
	if e.state.CompareAndSwap(int32(Created), int32(Running)) {
		go e.run()
		e.logger.Info("engine started",
			zap.Int("batch", e.batchSize),
			zap.Duration("interval", e.interval))
		return nil
	}
	if e.State() == Running {
		return ErrAlreadyRunning
	}
	return ErrShutdown
}

func (e *Engine) run() {
	defer e.finish()
	defer func() {
		if r := recover(); r != nil {
			e.setErr(fmt.Errorf("%w: %v", ErrEngineCrashed, r))
			e.queue.Close()
			e.logger.Error("engine loop panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	for {
		for _, cmd := range e.queue.DrainBatch(e.batchSize) {
			if _, ok := cmd.(Shutdown); ok {
				e.state.Store(int32(ShuttingDown))
				e.logger.Info("engine shutting down", zap.Int("dropped", e.queue.Len()))
				return
			}
			e.apply(cmd)
		}

		e.dispatch(e.scheduler.Tick(e.now()))

		// sleep one interval, or less when a command arrives
		timer.Reset(e.interval)
		select {
		case <-e.queue.Ready():
		case <-timer.C:
		}
	}
}

func (e *Engine) finish() {
	e.state.Store(int32(Stopped))
	e.doneOnce.Do(func() { close(e.done) })
}

func (e *Engine) apply(cmd Command) {
	now := e.now()
	switch c := cmd.(type) {
	case SendImmediate:
		e.dispatch([]Send{e.scheduler.Immediate(c.Channel, c.Number, c.Value)})
	case StartTransition:
		e.dispatch(e.scheduler.Start(c.Channel, c.Number, c.From, c.To, c.Duration, c.Curve, now))
	case ActivateScene:
		e.dispatch(e.scheduler.ActivateScene(c.Scene, c.Quantize, now))
	case MorphScenes:
		e.dispatch(e.scheduler.Morph(c.From, c.To, c.Duration, c.Curve, now))
	case StopAllTransitions:
		if n := e.scheduler.StopAll(); n > 0 {
			e.logger.Debug("stopped transitions", zap.Int("count", n))
		}
	case SetTempo:
		if ts, ok := e.clock.(interface{ SetTempo(float64) }); ok {
			ts.SetTempo(c.BPM)
		}
		e.scheduler.SetTempo(c.BPM)
	case Sync:
		close(c.Done)
	default:
		e.logger.Warn("unknown command", zap.String("type", fmt.Sprintf("%T", cmd)))
	}
}

func (e *Engine) dispatch(sends []Send) {
	for _, s := range sends {
		e.dispatcher.Send(s.Channel, s.Number, s.Value)
		if e.observer != nil {
			e.observer(s)
		}
	}
}

func (e *Engine) setErr(err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

// Err returns the loop's failure, if it crashed
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// Enqueue submits a raw command
func (e *Engine) Enqueue(cmd Command) error {
	return e.queue.Enqueue(cmd)
}

func (e *Engine) SendImmediate(channel, number, value int) error {
	return e.Enqueue(SendImmediate{Channel: channel, Number: number, Value: value})
}

func (e *Engine) StartTransition(channel, number, from, to int, d time.Duration, c curve.Kind) error {
	return e.Enqueue(StartTransition{
		Channel: channel, Number: number,
		From: from, To: to,
		Duration: d, Curve: c,
	})
}

// ActivateScene queues a snapshot of sc; later edits to sc do not affect it
func (e *Engine) ActivateScene(sc *scene.Scene, quantize uint8) error {
	return e.Enqueue(ActivateScene{Scene: sc.Clone(), Quantize: quantize})
}

// TriggerScene activates sc using its own trigger mode
func (e *Engine) TriggerScene(sc *scene.Scene) error {
	if sc == nil {
		return scene.ErrSceneNotFound
	}
	q, _ := sc.Trigger.Quantize()
	return e.ActivateScene(sc, q)
}

func (e *Engine) Morph(from, to *scene.Scene, d time.Duration, c curve.Kind) error {
	return e.Enqueue(MorphScenes{From: from.Clone(), To: to.Clone(), Duration: d, Curve: c})
}

func (e *Engine) StopAll() error {
	return e.Enqueue(StopAllTransitions{})
}

func (e *Engine) SetTempo(bpm float64) error {
	return e.Enqueue(SetTempo{BPM: bpm})
}

// Shutdown asks the loop to exit after every command already queued.
// Commands enqueued afterwards are rejected with ErrShutdown.
func (e *Engine) Shutdown() error {
	switch e.State() {
	case Created:
		if e.state.CompareAndSwap(int32(Created), int32(Stopped)) {
			e.queue.Close()
			e.finish()
			return nil
		}
	case ShuttingDown, Stopped:
		return ErrNotRunning
	}
	// already requested, the loop has not reached it yet
	if e.queue.Closed() {
		return ErrNotRunning
	}
	if err := e.queue.Enqueue(Shutdown{}); err != nil {
		return err
	}
	e.queue.Close()
	return nil
}

// Sync waits until every command queued before the call has been applied
func (e *Engine) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := e.Enqueue(Sync{Done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.done:
		select {
		case <-done:
			return nil
		default:
		}
		if err := e.Err(); err != nil {
			return err
		}
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle waits until queued commands are applied and no transition or
// quantized launch is outstanding
func (e *Engine) WaitIdle(ctx context.Context) error {
	if err := e.Sync(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if _, pending := e.PendingScene(); !pending && len(e.Transitions()) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-e.done:
			if err := e.Err(); err != nil {
				return err
			}
			return ErrShutdown
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done is closed once the loop has exited
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the loop exits and returns ErrEngineCrashed if it panicked
func (e *Engine) Wait() error {
	<-e.done
	return e.Err()
}

// Close shuts the loop down, waits for it, then closes every output
func (e *Engine) Close() error {
	if err := e.Shutdown(); err != nil && err != ErrNotRunning && err != ErrShutdown {
		return err
	}
	err := e.Wait()
	if cerr := e.dispatcher.Close(); err == nil {
		err = cerr
	}
	return err
}

// AddOutput opens an output synchronously so open errors reach the caller
func (e *Engine) AddOutput(d midi.Descriptor) error {
	return e.dispatcher.AddOutput(d)
}

// AttachOutput adds an output that is already open
func (e *Engine) AttachOutput(o Output) error {
	return e.dispatcher.Attach(o)
}

func (e *Engine) RemoveOutput(name string) error {
	return e.dispatcher.RemoveOutput(name)
}

func (e *Engine) Outputs() []string {
	return e.dispatcher.Outputs()
}

// Transitions is a snapshot of in-flight transitions
func (e *Engine) Transitions() []TransitionInfo {
	return e.scheduler.Snapshot(e.now())
}

// Value returns the last value sent for channel/number
func (e *Engine) Value(channel, number int) (int, bool) {
	return e.scheduler.Value(channel, number)
}

// PendingScene returns the scene waiting on a beat boundary
func (e *Engine) PendingScene() (*scene.Scene, bool) {
	sc, _, ok := e.scheduler.Pending()
	return sc, ok
}
