package queue

import (
	"sync"
	"testing"
)

func TestSPSC_PushPopOrder(t *testing.T) {
	q := NewSPSC[int](8)
	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
	}
	for i := 0; i < 5; i++ {
		var out int
		if !q.Pop(&out) {
			t.Fatalf("pop %d failed unexpectedly", i)
		}
		if out != i {
			t.Errorf("pop order: got %d, want %d", out, i)
		}
	}
}

func TestSPSC_PopEmpty(t *testing.T) {
	q := NewSPSC[int](4)
	var out int
	if q.Pop(&out) {
		t.Error("Pop on empty ring should return false")
	}
}

func TestSPSC_FullRejectsPush(t *testing.T) {
	q := NewSPSC[int](4) // effective capacity 3
	for i := 0; i < 3; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if q.Push(99) {
		t.Error("expected Push to fail once the ring is full")
	}
	if !q.Full() {
		t.Error("expected Full() to report true")
	}
}

func TestSPSC_CapacityRoundsToPowerOfTwo(t *testing.T) {
	q := NewSPSC[int](5)
	if q.Cap() != 7 {
		t.Errorf("capacity 5 should round up to 8 slots (cap 7), got %d", q.Cap())
	}
}

func TestSPSC_PeekDoesNotRemove(t *testing.T) {
	q := NewSPSC[int](4)
	q.Push(42)

	var out int
	if ok := q.Peek(&out); !ok || out != 42 {
		t.Fatalf("Peek() = %d, ok=%v, want 42, true", out, ok)
	}
	if q.Empty() {
		t.Error("Peek must not remove the item")
	}
	q.Pop(&out)
	if !q.Empty() {
		t.Error("expected ring empty after Pop")
	}
}

func TestSPSC_ConcurrentProducerConsumer(t *testing.T) {
	const n = 10000
	q := NewSPSC[int](1024)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Push(i) {
			}
		}
	}()

	sum := 0
	go func() {
		defer wg.Done()
		var out int
		for i := 0; i < n; i++ {
			for !q.Pop(&out) {
			}
			sum += out
		}
	}()

	wg.Wait()
	want := n * (n - 1) / 2
	if sum != want {
		t.Errorf("sum of consumed items = %d, want %d", sum, want)
	}
}
