// ABOUTME: Lock-free single-producer single-consumer ring buffer for float32 samples
// ABOUTME: Connects decode workers to stream slots without blocking the audio thread
package ring

import "sync/atomic"

// buffer is the shared state behind a Producer/Consumer pair. Capacity is a
// power of two so positions can be masked instead of taken modulo. Head and
// tail are free-running: length is tail-head and neither ever wraps in
// practice (2^64 samples at 48 kHz outlives the process by twelve million
// years).
type buffer struct {
	data []float32
	mask uint64

	head atomic.Uint64 // next sample to read, advanced by the consumer
	tail atomic.Uint64 // next sample to write, advanced by the producer

	producerClosed atomic.Bool // producer finished: end of stream
	consumerClosed atomic.Bool // consumer gone: producer should stop
}

// Producer is the write half of a ring. Exactly one goroutine may use it.
type Producer struct {
	b *buffer
}

// Consumer is the read half of a ring. Exactly one goroutine may use it.
type Consumer struct {
	b *buffer
}

// New creates a ring holding at least capacity samples and returns its two
// halves. Capacity is rounded up to the next power of two.
func New(capacity int) (*Producer, *Consumer) {
	if capacity < 2 {
		capacity = 2
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	b := &buffer{
		data: make([]float32, n),
		mask: uint64(n - 1),
	}
	return &Producer{b: b}, &Consumer{b: b}
}

// Write copies as many samples from src into the ring as fit and returns the
// number written. Never blocks. Returns 0 once the consumer has closed.
func (p *Producer) Write(src []float32) int {
	if p.b.consumerClosed.Load() {
		return 0
	}

	head := p.b.head.Load()
	tail := p.b.tail.Load()
	free := uint64(len(p.b.data)) - (tail - head)

	n := uint64(len(src))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	for i := uint64(0); i < n; i++ {
		p.b.data[(tail+i)&p.b.mask] = src[i]
	}
	p.b.tail.Store(tail + n)

	return int(n)
}

// Free returns the number of samples that can currently be written.
func (p *Producer) Free() int {
	return len(p.b.data) - int(p.b.tail.Load()-p.b.head.Load())
}

// Close marks the stream as finished. The consumer drains remaining samples
// and then observes EOS.
func (p *Producer) Close() {
	p.b.producerClosed.Store(true)
}

// ConsumerClosed reports whether the consumer has hung up; producers should
// stop generating data when it returns true.
func (p *Producer) ConsumerClosed() bool {
	return p.b.consumerClosed.Load()
}

// Cap returns the ring capacity in samples.
func (p *Producer) Cap() int {
	return len(p.b.data)
}

// Read copies up to len(dst) samples out of the ring and returns the number
// read. Never blocks; returns 0 when the ring is empty.
func (c *Consumer) Read(dst []float32) int {
	head := c.b.head.Load()
	tail := c.b.tail.Load()
	avail := tail - head

	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	for i := uint64(0); i < n; i++ {
		dst[i] = c.b.data[(head+i)&c.b.mask]
	}
	c.b.head.Store(head + n)

	return int(n)
}

// Len returns the number of samples currently buffered.
func (c *Consumer) Len() int {
	return int(c.b.tail.Load() - c.b.head.Load())
}

// Cap returns the ring capacity in samples.
func (c *Consumer) Cap() int {
	return len(c.b.data)
}

// EOS reports whether the producer has closed. The ring may still hold
// samples; the stream is over when EOS is true and Len is zero.
func (c *Consumer) EOS() bool {
	return c.b.producerClosed.Load()
}

// Close tells the producer to stop. Safe to call from the audio thread: it
// is a single atomic store.
func (c *Consumer) Close() {
	c.b.consumerClosed.Store(true)
}

// Closed reports whether Close has been called on this consumer.
func (c *Consumer) Closed() bool {
	return c.b.consumerClosed.Load()
}
