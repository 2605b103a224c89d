// ABOUTME: Tests for stream slots covering underrun handling and end-of-stream
// ABOUTME: Verifies ring consumer lifecycle including close-on-stop signaling
package mixer

import (
	"testing"

	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
)

func startStream(s *streamSlot, h Handle, cons *ring.Consumer, channels int, gain float32) {
	s.start(h, cons, &Command{Channels: channels, Gain: gain}, 0)
}

func writeFrames(t *testing.T, prod *ring.Producer, samples []float32) {
	t.Helper()
	if n := prod.Write(samples); n != len(samples) {
		t.Fatalf("expected %d samples written, got %d", len(samples), n)
	}
}

func constSamples(n int, value float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func TestStreamUnderrunZeroFillsAndCounts(t *testing.T) {
	prod, cons := ring.New(512)
	var s streamSlot
	startStream(&s, 1, cons, 2, 1)

	// 32 stereo frames available, 64 requested.
	writeFrames(t, prod, constSamples(64, 0.5))

	dst := make([]float32, 64*2)
	scratch := make([]float32, 64*2)
	finished, underrun := s.mixInto(dst, 64, scratch)
	if finished {
		t.Error("expected stream to stay active through an underrun")
	}
	if !underrun {
		t.Error("expected underrun flag for a short block")
	}
	if s.underruns != 1 {
		t.Errorf("expected slot underrun counter 1, got %d", s.underruns)
	}
	for f := 0; f < 32; f++ {
		if dst[f*2] != 0.5 {
			t.Fatalf("frame %d: expected 0.5, got %v", f, dst[f*2])
		}
	}
	for f := 32; f < 64; f++ {
		if dst[f*2] != 0 || dst[f*2+1] != 0 {
			t.Fatalf("frame %d: expected silence in underrun tail, got %v/%v", f, dst[f*2], dst[f*2+1])
		}
	}

	// Still no data: one more underrun, exactly one per block.
	finished, underrun = s.mixInto(dst, 64, scratch)
	if finished || !underrun {
		t.Error("expected a second counted underrun")
	}
	if s.underruns != 2 {
		t.Errorf("expected slot underrun counter 2, got %d", s.underruns)
	}
}

func TestStreamEndOfStreamPartialBlock(t *testing.T) {
	prod, cons := ring.New(512)
	var s streamSlot
	startStream(&s, 1, cons, 2, 1)

	writeFrames(t, prod, constSamples(32, 0.25))
	prod.Close()

	dst := make([]float32, 64*2)
	scratch := make([]float32, 64*2)
	finished, underrun := s.mixInto(dst, 64, scratch)
	if !finished {
		t.Error("expected stream to finish when producer closed and ring drained")
	}
	if underrun {
		t.Error("expected end of stream not to count as underrun")
	}
	if s.active {
		t.Error("expected slot freed at end of stream")
	}
	if dst[15*2] != 0.25 {
		t.Errorf("expected final samples mixed before deactivation, got %v", dst[15*2])
	}
	if !cons.Closed() {
		t.Error("expected consumer closed on deactivation")
	}
}

func TestStreamEndOfStreamExactDrain(t *testing.T) {
	prod, cons := ring.New(512)
	var s streamSlot
	startStream(&s, 1, cons, 2, 1)

	writeFrames(t, prod, constSamples(128, 0.25))
	prod.Close()

	dst := make([]float32, 64*2)
	scratch := make([]float32, 64*2)
	finished, _ := s.mixInto(dst, 64, scratch)
	if finished {
		t.Fatal("expected stream alive with a full block available")
	}
	// The ring drains to exactly empty here, so the end is detected on
	// the next block without mixing garbage.
	finished, underrun := s.mixInto(dst, 64, scratch)
	if !finished {
		t.Error("expected stream to end once the ring drained empty")
	}
	if underrun {
		t.Error("expected clean end of stream, not an underrun")
	}
}

func TestStreamFadeClosesRing(t *testing.T) {
	prod, cons := ring.New(4096)
	var s streamSlot
	startStream(&s, 1, cons, 2, 1)
	writeFrames(t, prod, constSamples(4000, 0.5))

	// 1 ms at 48 kHz completes inside one 64-frame block.
	s.beginFade(1, 48000)
	dst := make([]float32, 64*2)
	scratch := make([]float32, 64*2)
	finished, _ := s.mixInto(dst, 64, scratch)
	if !finished {
		t.Error("expected fade to finish within the block")
	}
	if s.active {
		t.Error("expected slot freed at fade completion")
	}
	if prod.Write(constSamples(2, 0)) != 0 {
		t.Error("expected producer writes rejected after consumer close")
	}
}

func TestStreamImmediateStop(t *testing.T) {
	_, cons := ring.New(64)
	var s streamSlot
	startStream(&s, 1, cons, 2, 1)
	s.beginFade(0, 48000)
	if s.active {
		t.Error("expected zero-length fade to free the slot immediately")
	}
	if !cons.Closed() {
		t.Error("expected consumer closed on immediate stop")
	}
}

func TestStreamMonoDuplicatesToStereo(t *testing.T) {
	prod, cons := ring.New(256)
	var s streamSlot
	startStream(&s, 1, cons, 1, 1)
	writeFrames(t, prod, constSamples(64, 0.5))

	dst := make([]float32, 64*2)
	scratch := make([]float32, 64*2)
	s.mixInto(dst, 64, scratch)
	for f := 0; f < 64; f++ {
		if dst[f*2] != 0.5 || dst[f*2+1] != 0.5 {
			t.Fatalf("frame %d: expected 0.5 on both channels, got %v/%v", f, dst[f*2], dst[f*2+1])
		}
	}
}

func TestStreamGainSmoothing(t *testing.T) {
	prod, cons := ring.New(1024)
	var s streamSlot
	startStream(&s, 1, cons, 1, 0.2)
	writeFrames(t, prod, constSamples(256, 1))

	s.target = 0.8
	dst := make([]float32, 64*2)
	scratch := make([]float32, 64*2)
	s.mixInto(dst, 64, scratch)

	if s.gain != 0.8 {
		t.Errorf("expected gain settled at 0.8, got %v", s.gain)
	}
	prev := float32(0)
	for f := 0; f < 64; f++ {
		if dst[f*2] <= prev {
			t.Fatalf("frame %d: expected rising ramp, got %v after %v", f, dst[f*2], prev)
		}
		prev = dst[f*2]
	}
}

func TestStreamFeedDownmix(t *testing.T) {
	prod, cons := ring.New(512)
	var s streamSlot
	startStream(&s, 1, cons, 2, 1)

	interleaved := make([]float32, 64*2)
	for f := 0; f < 64; f++ {
		interleaved[f*2] = 0.2
		interleaved[f*2+1] = 0.6
	}
	writeFrames(t, prod, interleaved)

	dst := make([]float32, 64)
	scratch := make([]float32, 64*2)
	s.mixFeed(dst, 64, scratch)
	expected := float32(0.4)
	if diff := dst[0] - expected; diff < -1e-6 || diff > 1e-6 {
		t.Errorf("expected downmixed feed %v, got %v", expected, dst[0])
	}
}

func TestStreamPoolNoStealing(t *testing.T) {
	p := newStreamPool(2)
	_, cons1 := ring.New(64)
	_, cons2 := ring.New(64)
	startStream(&p.slots[0], 1, cons1, 2, 1)
	startStream(&p.slots[1], 2, cons2, 2, 1)

	if slot := p.allocate(); slot != -1 {
		t.Errorf("expected full stream pool to reject allocation, got slot %d", slot)
	}
	p.slots[0].deactivate()
	if slot := p.allocate(); slot != 0 {
		t.Errorf("expected freed slot 0, got %d", slot)
	}
}
