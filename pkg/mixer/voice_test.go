// ABOUTME: Tests for the voice pool covering stealing, lifecycle and gain smoothing
// ABOUTME: Exercises natural end, looping, fades and pan law selection
package mixer

import (
	"math"
	"testing"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// monoBuffer builds a mono buffer of constant sample value, which makes
// mixed output easy to assert against.
func monoBuffer(name string, frames int, value float32) *audio.SampleBuffer {
	data := make([]float32, frames)
	for i := range data {
		data[i] = value
	}
	return &audio.SampleBuffer{Name: name, Data: data, Channels: 1}
}

func stereoBuffer(name string, frames int, left, right float32) *audio.SampleBuffer {
	data := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = left
		data[i*2+1] = right
	}
	return &audio.SampleBuffer{Name: name, Data: data, Channels: 2}
}

func startVoice(v *voice, h Handle, buf *audio.SampleBuffer, gain, priority, pan float32, block uint64) {
	v.start(h, buf, &Command{Gain: gain, Priority: priority, Pan: pan}, block)
}

func TestVoiceStealPolicy(t *testing.T) {
	tests := []struct {
		name       string
		priorities []float32
		gains      []float32
		started    []uint64
		victim     int
	}{
		{
			name:       "lowest priority loses",
			priorities: []float32{5, 1, 3},
			gains:      []float32{0.1, 1.0, 0.5},
			started:    []uint64{1, 2, 3},
			victim:     1,
		},
		{
			name:       "equal priority lowest score loses",
			priorities: []float32{2, 2, 2},
			gains:      []float32{0.9, 0.2, 0.5},
			started:    []uint64{1, 2, 3},
			victim:     1,
		},
		{
			name:       "full tie oldest loses",
			priorities: []float32{2, 2, 2},
			gains:      []float32{0.5, 0.5, 0.5},
			started:    []uint64{7, 3, 9},
			victim:     1,
		},
		{
			name:       "quiet high priority survives loud low priority",
			priorities: []float32{10, 1, 1},
			gains:      []float32{0.01, 1.0, 0.9},
			started:    []uint64{1, 2, 3},
			victim:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newVoicePool(len(tt.priorities))
			buf := monoBuffer("steal", 16, 1)
			for i := range p.slots {
				startVoice(&p.slots[i], Handle(i+1), buf, tt.gains[i], tt.priorities[i], 0, tt.started[i])
			}

			slot, stole := p.allocate()
			if !stole {
				t.Fatal("expected allocation to steal from a full pool")
			}
			if slot != tt.victim {
				t.Errorf("expected victim slot %d, got %d", tt.victim, slot)
			}
			if p.slots[slot].active {
				t.Error("expected victim to be deactivated")
			}
		})
	}
}

func TestVoicePoolPrefersFreeSlot(t *testing.T) {
	p := newVoicePool(3)
	buf := monoBuffer("free", 16, 1)
	startVoice(&p.slots[0], 1, buf, 1, 1, 0, 1)
	startVoice(&p.slots[2], 2, buf, 1, 1, 0, 1)

	slot, stole := p.allocate()
	if stole {
		t.Error("expected no steal with a free slot available")
	}
	if slot != 1 {
		t.Errorf("expected free slot 1, got %d", slot)
	}
}

func TestVoicePoolZeroCapacity(t *testing.T) {
	p := newVoicePool(0)
	if slot, _ := p.allocate(); slot != -1 {
		t.Errorf("expected -1 from empty pool, got %d", slot)
	}
}

func TestVoiceNaturalEndMidBlock(t *testing.T) {
	var v voice
	startVoice(&v, 1, monoBuffer("short", 10, 1), 1, 1, 0, 0)

	dst := make([]float32, 32*2)
	finished := v.mixInto(dst, 32)
	if !finished {
		t.Error("expected voice to finish when buffer ends mid-block")
	}
	if v.active {
		t.Error("expected voice deactivated after natural end")
	}
	if dst[9*2] == 0 {
		t.Error("expected signal in final buffer frame")
	}
	for f := 10; f < 32; f++ {
		if dst[f*2] != 0 || dst[f*2+1] != 0 {
			t.Fatalf("frame %d: expected silence after buffer end, got %v/%v", f, dst[f*2], dst[f*2+1])
		}
	}
}

func TestVoiceLoopWrapsMidBlock(t *testing.T) {
	var v voice
	v.start(1, monoBuffer("loop", 4, 0.5), &Command{Gain: 1, Loop: true}, 0)

	dst := make([]float32, 10*2)
	finished := v.mixInto(dst, 10)
	if finished {
		t.Error("expected looping voice to keep playing")
	}
	if !v.active {
		t.Error("expected looping voice to stay active")
	}
	if v.cursor != 2 {
		t.Errorf("expected playhead wrapped to 2, got %d", v.cursor)
	}
	for f := 0; f < 10; f++ {
		if dst[f*2] == 0 {
			t.Fatalf("frame %d: expected continuous signal across loop wrap", f)
		}
	}
}

func TestVoiceGainRampReachesTarget(t *testing.T) {
	var v voice
	startVoice(&v, 1, monoBuffer("ramp", 256, 1), 0.2, 1, 0, 0)
	v.target = 0.8

	dst := make([]float32, 64*2)
	v.mixInto(dst, 64)

	if v.gain != 0.8 {
		t.Errorf("expected gain settled at target 0.8, got %v", v.gain)
	}
	prev := float32(0)
	for f := 0; f < 64; f++ {
		if dst[f*2] <= prev {
			t.Fatalf("frame %d: expected strictly rising ramp, got %v after %v", f, dst[f*2], prev)
		}
		prev = dst[f*2]
	}
	last := dst[63*2]
	expected := float32(0.8 * math.Sqrt2 / 2)
	if diff := last - expected; diff < -1e-4 || diff > 1e-4 {
		t.Errorf("expected final frame near %v, got %v", expected, last)
	}
}

func TestVoiceFadeFreesSlotAtCompletion(t *testing.T) {
	var v voice
	startVoice(&v, 1, monoBuffer("fade", 48000, 1), 1, 1, 0, 0)

	// 1 ms at 48 kHz is 48 frames, so the fade ends inside one 64-frame
	// block.
	v.beginFade(1, 48000)
	if !v.active {
		t.Fatal("expected voice active during fade")
	}
	dst := make([]float32, 64*2)
	finished := v.mixInto(dst, 64)
	if !finished {
		t.Error("expected fade to complete within the block")
	}
	if v.active {
		t.Error("expected slot freed at fade completion")
	}
}

func TestVoiceFadeSpansBlocks(t *testing.T) {
	var v voice
	startVoice(&v, 1, monoBuffer("long fade", 48000, 1), 1, 1, 0, 0)

	// 10 ms is 480 frames: alive after one 64-frame block, gone within
	// eight.
	v.beginFade(10, 48000)
	dst := make([]float32, 64*2)
	if v.mixInto(dst, 64) {
		t.Fatal("expected fade to span more than one block")
	}
	if v.gain >= 1 {
		t.Errorf("expected gain reduced after first fade block, got %v", v.gain)
	}
	blocks := 1
	for v.active && blocks < 10 {
		v.mixInto(dst, 64)
		blocks++
	}
	if v.active {
		t.Error("expected fade to finish within 10 blocks")
	}
	if blocks != 8 {
		t.Errorf("expected fade completion on block 8, got %d", blocks)
	}
}

func TestVoiceImmediateStop(t *testing.T) {
	var v voice
	startVoice(&v, 1, monoBuffer("cut", 64, 1), 1, 1, 0, 0)
	v.beginFade(0, 48000)
	if v.active {
		t.Error("expected zero-length fade to deactivate immediately")
	}
	if v.buffer != nil {
		t.Error("expected buffer reference released on deactivation")
	}
}

func TestVoicePanLaws(t *testing.T) {
	root2 := float32(math.Sqrt2 / 2)
	tests := []struct {
		name      string
		buf       *audio.SampleBuffer
		pan       float32
		expectedL float32
		expectedR float32
	}{
		{"mono center constant power", monoBuffer("m", 4, 1), 0, root2, root2},
		{"mono hard left", monoBuffer("m", 4, 1), -1, 1, 0},
		{"mono hard right", monoBuffer("m", 4, 1), 1, 0, 1},
		{"stereo center untouched", stereoBuffer("s", 4, 1, 1), 0, 1, 1},
		{"stereo balance right", stereoBuffer("s", 4, 1, 1), 0.5, 0.5, 1},
		{"stereo balance left", stereoBuffer("s", 4, 1, 1), -0.5, 1, 0.5},
		{"pan clamped", monoBuffer("m", 4, 1), -7, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v voice
			startVoice(&v, 1, tt.buf, 1, 1, tt.pan, 0)
			if diff := v.panL - tt.expectedL; diff < -1e-5 || diff > 1e-5 {
				t.Errorf("expected panL %v, got %v", tt.expectedL, v.panL)
			}
			if diff := v.panR - tt.expectedR; diff < -1e-5 || diff > 1e-5 {
				t.Errorf("expected panR %v, got %v", tt.expectedR, v.panR)
			}
		})
	}
}

func TestVoiceStereoMixKeepsChannels(t *testing.T) {
	var v voice
	startVoice(&v, 1, stereoBuffer("s", 8, 0.25, 0.75), 1, 1, 0, 0)

	dst := make([]float32, 8*2)
	v.mixInto(dst, 8)
	if dst[0] != 0.25 || dst[1] != 0.75 {
		t.Errorf("expected stereo frame 0.25/0.75, got %v/%v", dst[0], dst[1])
	}
}

func TestVoiceFeedDownmixesStereo(t *testing.T) {
	var v voice
	startVoice(&v, 1, stereoBuffer("s", 8, 0.2, 0.6), 1, 1, 0, 0)

	dst := make([]float32, 8)
	v.mixFeed(dst, 8)
	expected := float32(0.4)
	if diff := dst[0] - expected; diff < -1e-6 || diff > 1e-6 {
		t.Errorf("expected downmixed feed %v, got %v", expected, dst[0])
	}
}

func TestVoiceFindByHandle(t *testing.T) {
	p := newVoicePool(4)
	buf := monoBuffer("find", 16, 1)
	startVoice(&p.slots[2], 42, buf, 1, 1, 0, 0)

	if v := p.find(42); v == nil {
		t.Error("expected to find active handle 42")
	}
	if v := p.find(7); v != nil {
		t.Error("expected stale handle to miss")
	}
	p.slots[2].deactivate()
	if v := p.find(42); v != nil {
		t.Error("expected deactivated handle to miss")
	}
}
