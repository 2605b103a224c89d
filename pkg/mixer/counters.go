// ABOUTME: Fault and activity counters shared between the audio and control threads
// ABOUTME: Atomics are the only error-reporting channel out of the real-time path
package mixer

import (
	"math"
	"sync/atomic"
)

// counters is written by the audio thread and polled by the control thread.
// Nothing on the render path ever surfaces an error synchronously; these
// are how trouble becomes visible.
type counters struct {
	blocksRendered  atomic.Uint64
	commandsApplied atomic.Uint64
	commandsIgnored atomic.Uint64
	voicesStarted   atomic.Uint64
	voicesStolen    atomic.Uint64
	streamsStarted  atomic.Uint64
	streamsRejected atomic.Uint64
	streamUnderruns atomic.Uint64
	spatialFaults   atomic.Uint64
	renderFaults    atomic.Uint64
	activeVoices    atomic.Int32
	activeStreams   atomic.Int32
	masterPeak      atomic.Uint32 // float32 bits
}

func (c *counters) setMasterPeak(p float32) {
	c.masterPeak.Store(math.Float32bits(p))
}

// Stats is a point-in-time snapshot of the renderer's counters, safe to
// read from any goroutine.
type Stats struct {
	BlocksRendered  uint64
	CommandsApplied uint64
	CommandsDropped uint64
	CommandsIgnored uint64
	VoicesStarted   uint64
	VoicesStolen    uint64
	StreamsStarted  uint64
	StreamsRejected uint64
	StreamUnderruns uint64
	SpatialFaults   uint64
	RenderFaults    uint64
	ActiveVoices    int
	ActiveStreams   int
	MasterPeak      float32
}
