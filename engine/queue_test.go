package engine

import (
	"errors"
	"sync"
	"testing"
)

func TestQueue_FIFOBatches(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 25; i++ {
		if err := q.Enqueue(SendImmediate{Value: i}); err != nil {
			t.Fatal(err)
		}
	}

	var got []int
	for _, size := range []int{10, 10, 10} {
		batch := q.DrainBatch(size)
		for _, c := range batch {
			got = append(got, c.(SendImmediate).Value)
		}
	}
	if len(got) != 25 {
		t.Fatalf("drained %d, want 25", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order broken at %d: %v", i, got)
		}
	}
	if q.DrainBatch(10) != nil {
		t.Error("expected empty drain")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers, each = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Enqueue(SendImmediate{Channel: p, Value: i})
			}
		}(p)
	}
	wg.Wait()

	// per-producer order survives interleaving
	last := make(map[int]int)
	total := 0
	for {
		batch := q.DrainBatch(DefaultBatchSize)
		if batch == nil {
			break
		}
		for _, c := range batch {
			s := c.(SendImmediate)
			if prev, ok := last[s.Channel]; ok && s.Value != prev+1 {
				t.Fatalf("producer %d out of order: %d after %d", s.Channel, s.Value, prev)
			}
			last[s.Channel] = s.Value
			total++
		}
	}
	if total != producers*each {
		t.Errorf("drained %d, want %d", total, producers*each)
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	q.Enqueue(StopAllTransitions{})
	q.Close()

	if err := q.Enqueue(StopAllTransitions{}); !errors.Is(err, ErrShutdown) {
		t.Errorf("Enqueue after Close = %v, want ErrShutdown", err)
	}
	if n := len(q.DrainBatch(10)); n != 1 {
		t.Errorf("queued commands lost on close: %d", n)
	}
}
