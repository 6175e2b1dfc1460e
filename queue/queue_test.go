package queue

import (
	"sync"
	"testing"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	if v, ok := q.Dequeue(); !ok || v != 1 {
		t.Fatalf("expected 1, got %d (%v)", v, ok)
	}
	items := q.Drain()
	if len(items) != 2 || items[0] != 2 || items[1] != 3 {
		t.Fatalf("expected [2 3], got %v", items)
	}
	if !q.IsEmpty() {
		t.Fatalf("expected empty queue after drain")
	}
	if items := q.Drain(); items != nil {
		t.Fatalf("expected nil drain on empty queue, got %v", items)
	}
}

func TestQueue_ConcurrentProducer(t *testing.T) {
	q := New[int]()
	const n = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(i)
		}
	}()

	var got []int
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		got = append(got, q.Drain()...)
		select {
		case <-done:
			got = append(got, q.Drain()...)
			if len(got) != n {
				t.Fatalf("expected %d items, got %d", n, len(got))
			}
			for i, v := range got {
				if v != i {
					t.Fatalf("item %d out of order: %d", i, v)
				}
			}
			return
		default:
		}
	}
}
