package queue

import "sync/atomic"

// mpmcSlot holds one ring-buffer slot together with the sequence number
// that arbitrates which generation of producer/consumer may touch it.
type mpmcSlot[T any] struct {
	sequence atomic.Uint64
	data     T
	_        cacheLinePad
}

// MPMC is a bounded multi-producer/multi-consumer lock-free ring buffer
// using the Vyukov per-slot sequence-number scheme: slot i starts with
// sequence i; a push at position pos sets it to pos+1 and the matching pop
// sets it to pos+Size, so each producer/consumer generation advances a
// slot's sequence by Size and ABA across generations is impossible (the
// sequence only ever increases).
type MPMC[T any] struct {
	head atomic.Uint64
	_    cacheLinePad
	tail atomic.Uint64
	_    cacheLinePad

	mask  uint64
	slots []mpmcSlot[T]
}

// NewMPMC creates an MPMC ring of the given capacity, rounded up to the
// next power of two if necessary (minimum 2).
func NewMPMC[T any](capacity int) *MPMC[T] {
	size := nextPowerOfTwo(capacity)
	if size < 2 {
		size = 2
	}
	q := &MPMC[T]{
		mask:  uint64(size - 1),
		slots: make([]mpmcSlot[T], size),
	}
	for i := range q.slots {
		q.slots[i].sequence.Store(uint64(i))
	}
	return q
}

// Push enqueues x. It returns false if the ring is full. Each failed CAS
// iteration corresponds to another producer's successful one, so the
// operation is lock-free.
func (q *MPMC[T]) Push(x T) bool {
	for {
		pos := q.tail.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()

		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				slot.data = x
				slot.sequence.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		default:
			// another thread has moved tail past pos already; retry
		}
	}
}

// Pop dequeues into out. It returns false if the ring is empty.
func (q *MPMC[T]) Pop(out *T) bool {
	for {
		pos := q.head.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()

		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				*out = slot.data
				slot.sequence.Store(pos + uint64(len(q.slots)))
				return true
			}
		case diff < 0:
			return false
		default:
			// another consumer already advanced head past pos; retry
		}
	}
}

// Size returns the approximate number of queued items.
func (q *MPMC[T]) Size() int {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the ring's fixed capacity.
func (q *MPMC[T]) Cap() int { return len(q.slots) }
