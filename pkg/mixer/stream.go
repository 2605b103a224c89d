// ABOUTME: Stream slot pool for long-form audio fed through lock-free rings
// ABOUTME: Pops decoded samples each block and degrades to silence on underrun
package mixer

import (
	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

// streamSlot is one long-running playback instance. The producer half of
// the ring lives on a decode worker; the slot owns the consumer half from
// StartStream until deactivation, when closing it tells the producer to
// stop.
type streamSlot struct {
	handle    Handle
	cons      *ring.Consumer
	channels  int
	gain      float32
	target    float32
	fadeStep  float32
	bus       BusID
	spatial   bool
	spatialID spatial.SourceID
	underruns uint64
	started   uint64
	active    bool
}

func (s *streamSlot) start(h Handle, cons *ring.Consumer, cmd *Command, block uint64) {
	s.handle = h
	s.cons = cons
	s.channels = cmd.Channels
	if s.channels != 1 && s.channels != 2 {
		s.channels = 2
	}
	s.gain = cmd.Gain
	s.target = cmd.Gain
	s.fadeStep = 0
	s.bus = cmd.Bus
	s.started = block
	s.active = true
}

func (s *streamSlot) beginFade(fadeMs float32, sampleRate int) {
	fadeFrames := fadeMs * float32(sampleRate) / 1000
	if fadeFrames < 1 || s.gain <= 0 {
		s.deactivate()
		return
	}
	s.fadeStep = s.gain / fadeFrames
	s.target = 0
}

func (s *streamSlot) gainStep(frames int) float32 {
	if s.fadeStep > 0 {
		return -s.fadeStep
	}
	return (s.target - s.gain) / float32(frames)
}

// pop fills scratch with frames*channels samples from the ring, zero-filling
// any shortfall. It reports whether the shortfall was an underrun (producer
// still running but late) and whether the stream ended (producer closed and
// ring drained). Never blocks.
func (s *streamSlot) pop(scratch []float32, frames int) (underrun, ended bool) {
	want := frames * s.channels
	got := s.cons.Read(scratch[:want])
	for i := got; i < want; i++ {
		scratch[i] = 0
	}
	if got < want {
		if s.cons.EOS() {
			return false, true
		}
		s.underruns++
		return true, false
	}
	return false, false
}

// mixInto pops one block from the ring and adds it into dst, a stereo
// interleaved scratch buffer, with per-sample gain smoothing. Mono streams
// are duplicated to both channels at unity; streams are beds rather than
// point sources, so no pan law applies. Returns the finished flag and
// whether this block underran.
func (s *streamSlot) mixInto(dst []float32, frames int, scratch []float32) (finished, underrun bool) {
	if s.cons.EOS() && s.cons.Len() == 0 {
		s.deactivate()
		return true, false
	}
	underrun, ended := s.pop(scratch, frames)
	step := s.gainStep(frames)
	g := s.gain
	fading := s.fadeStep > 0

	for i := 0; i < frames; i++ {
		g += step
		if fading && g <= 0 {
			s.deactivate()
			return true, underrun
		}
		j := i * 2
		if s.channels == 1 {
			v := scratch[i] * g
			dst[j] += v
			dst[j+1] += v
		} else {
			dst[j] += scratch[j] * g
			dst[j+1] += scratch[j+1] * g
		}
	}
	if fading {
		s.gain = g
	} else {
		s.gain = s.target
	}
	if ended {
		s.deactivate()
		return true, underrun
	}
	return false, underrun
}

// mixFeed is mixInto for spatially tracked streams, writing a mono feed for
// the spatializer; stereo content is downmixed.
func (s *streamSlot) mixFeed(dst []float32, frames int, scratch []float32) (finished, underrun bool) {
	if s.cons.EOS() && s.cons.Len() == 0 {
		s.deactivate()
		return true, false
	}
	underrun, ended := s.pop(scratch, frames)
	step := s.gainStep(frames)
	g := s.gain
	fading := s.fadeStep > 0

	for i := 0; i < frames; i++ {
		g += step
		if fading && g <= 0 {
			s.deactivate()
			return true, underrun
		}
		if s.channels == 1 {
			dst[i] += scratch[i] * g
		} else {
			dst[i] += (scratch[i*2] + scratch[i*2+1]) * 0.5 * g
		}
	}
	if fading {
		s.gain = g
	} else {
		s.gain = s.target
	}
	if ended {
		s.deactivate()
		return true, underrun
	}
	return false, underrun
}

// deactivate frees the slot and closes the consumer so the producer side
// sees the stream is gone.
func (s *streamSlot) deactivate() {
	if s.cons != nil {
		s.cons.Close()
		s.cons = nil
	}
	s.active = false
	s.fadeStep = 0
}

// streamPool is the fixed set of stream slots. Unlike voices, streams do
// not steal: long-form playback is deliberate, so when every slot is busy a
// new stream is rejected and counted instead of silencing another one.
type streamPool struct {
	slots []streamSlot
}

func newStreamPool(capacity int) streamPool {
	return streamPool{slots: make([]streamSlot, capacity)}
}

func (p *streamPool) allocate() int {
	for i := range p.slots {
		if !p.slots[i].active {
			return i
		}
	}
	return -1
}

func (p *streamPool) find(h Handle) *streamSlot {
	for i := range p.slots {
		if p.slots[i].active && p.slots[i].handle == h {
			return &p.slots[i]
		}
	}
	return nil
}

func (p *streamPool) countActive() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].active {
			n++
		}
	}
	return n
}
