package engine

import "sync"

// Queue is an unbounded multi-producer, single-consumer command FIFO.
// Enqueue never blocks on the consumer.
type Queue struct {
	mu     sync.Mutex
	items  []Command
	closed bool
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends cmd. Fails only after Close.
func (q *Queue) Enqueue(cmd Command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrShutdown
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// DrainBatch removes and returns up to max commands in FIFO order
func (q *Queue) DrainBatch(max int) []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return nil
	}
	if max > 0 && n > max {
		n = max
	}
	batch := make([]Command, n)
	copy(batch, q.items)
	// release references held by the backing array
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return batch
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Enqueue calls. Queued commands remain drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Ready is signaled after an Enqueue so the loop can wake before its interval
func (q *Queue) Ready() <-chan struct{} {
	return q.notify
}
