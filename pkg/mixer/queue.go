// ABOUTME: Bounded single-producer single-consumer command queue
// ABOUTME: Push never blocks and reports drops; the audio thread drains without locking
package mixer

import "sync/atomic"

// Queue carries Commands from one control goroutine to the audio thread.
// It is wait-free on both sides: Push fails fast when full instead of
// blocking, and DrainInto pops whatever was visible at entry. Exactly one
// goroutine may call Push and exactly one may call DrainInto.
type Queue struct {
	cmds    []Command
	mask    uint64
	head    atomic.Uint64 // next slot to pop, advanced by the consumer
	tail    atomic.Uint64 // next slot to fill, advanced by the producer
	dropped atomic.Uint64
}

// NewQueue returns a queue holding at least capacity commands. Capacity is
// rounded up to a power of two, minimum 2.
func NewQueue(capacity int) *Queue {
	size := uint64(2)
	for size < uint64(capacity) {
		size <<= 1
	}
	return &Queue{
		cmds: make([]Command, size),
		mask: size - 1,
	}
}

// Push appends cmd and returns true, or returns false and counts a drop
// when the queue is full. It never blocks and never allocates.
func (q *Queue) Push(cmd Command) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() > q.mask {
		q.dropped.Add(1)
		return false
	}
	q.cmds[tail&q.mask] = cmd
	q.tail.Store(tail + 1)
	return true
}

// DrainInto applies every command that was queued before the call, in FIFO
// order, and returns how many it applied. Commands pushed concurrently with
// the drain are left for the next call, which bounds the work done per
// render block. Slots are cleared after use so the queue does not pin
// buffers or rings that the mixer has finished with.
func (q *Queue) DrainInto(apply func(*Command)) int {
	head := q.head.Load()
	tail := q.tail.Load()
	for pos := head; pos != tail; pos++ {
		slot := &q.cmds[pos&q.mask]
		apply(slot)
		*slot = Command{}
	}
	n := int(tail - head)
	if n > 0 {
		q.head.Store(tail)
	}
	return n
}

// Dropped reports how many commands Push has rejected since creation.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Cap reports the queue capacity after rounding.
func (q *Queue) Cap() int {
	return int(q.mask + 1)
}

// Len reports how many commands are currently queued. Racy by nature; meant
// for diagnostics.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}
