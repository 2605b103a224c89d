// ABOUTME: SPSC ring buffer package for streaming audio samples
// ABOUTME: Wait-free on both sides, sized in samples, power-of-two capacity
// Package ring provides a lock-free single-producer single-consumer ring
// buffer carrying interleaved float32 samples.
//
// A decode worker owns the Producer half and the mixer's stream slot owns
// the Consumer half. Both sides are wait-free: Write and Read move what
// fits and return immediately, which is what the audio thread's no-blocking
// contract requires. Either side can hang up with Close: the producer to
// signal end of stream, the consumer to tell the producer to stop.
//
// Example:
//
//	prod, cons := ring.New(32 * 1024)
//	go func() {
//	    for !prod.ConsumerClosed() {
//	        n := prod.Write(chunk)
//	        // sleep briefly when n == 0
//	    }
//	}()
//	got := cons.Read(block)
package ring
