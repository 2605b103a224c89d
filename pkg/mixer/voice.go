// ABOUTME: Fixed-capacity voice pool for one-shot and looping in-memory sounds
// ABOUTME: Implements allocation with stealing, per-sample gain smoothing and fades
package mixer

import (
	"math"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

// voice is one playback instance of a decoded buffer. All fields are owned
// by the audio thread; the control thread reaches them only through
// commands.
type voice struct {
	handle    Handle
	buffer    *audio.SampleBuffer
	cursor    int // playhead, in frames
	gain      float32
	target    float32
	fadeStep  float32 // per-frame decrement while stopping, 0 otherwise
	panL      float32
	panR      float32
	priority  float32
	bus       BusID
	loop      bool
	spatial   bool
	spatialID spatial.SourceID
	started   uint64 // block index at start, for steal tie-breaks
	active    bool
}

// start resets the slot for a new sound. Pan gains are derived here once:
// mono sources use a constant-power law so a centered sound keeps perceived
// loudness while moving, stereo sources use a balance law so a centered
// sound passes through untouched.
func (v *voice) start(h Handle, buf *audio.SampleBuffer, cmd *Command, block uint64) {
	v.handle = h
	v.buffer = buf
	v.cursor = 0
	v.gain = cmd.Gain
	v.target = cmd.Gain
	v.fadeStep = 0
	v.priority = cmd.Priority
	v.bus = cmd.Bus
	v.loop = cmd.Loop
	v.started = block
	v.active = true

	pan := cmd.Pan
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	if buf.Channels == 1 {
		angle := float64(pan+1) * math.Pi / 4
		v.panL = float32(math.Cos(angle))
		v.panR = float32(math.Sin(angle))
	} else {
		v.panL = 1
		v.panR = 1
		if pan > 0 {
			v.panL = 1 - pan
		} else if pan < 0 {
			v.panR = 1 + pan
		}
	}
}

// beginFade starts a linear ramp to silence over fadeMs. A zero or negative
// duration deactivates immediately. The slot is freed only when the ramp
// reaches zero, never mid-fade.
func (v *voice) beginFade(fadeMs float32, sampleRate int) {
	fadeFrames := fadeMs * float32(sampleRate) / 1000
	if fadeFrames < 1 || v.gain <= 0 {
		v.active = false
		v.buffer = nil
		return
	}
	v.fadeStep = v.gain / fadeFrames
	v.target = 0
}

// gainStep returns the per-frame gain increment for this block. Fades use
// their fixed per-frame step so the ramp duration is honored across blocks;
// everything else ramps linearly to the target within the block.
func (v *voice) gainStep(frames int) float32 {
	if v.fadeStep > 0 {
		return -v.fadeStep
	}
	return (v.target - v.gain) / float32(frames)
}

// mixInto advances the playhead by up to frames and adds the voice's
// contribution into dst, a stereo interleaved scratch buffer. It returns
// true when the voice finished this block, either by reaching the end of a
// non-looping buffer or by completing a fade; the remainder of the block is
// left untouched, which is silence because scratch buffers are zeroed at
// block start.
func (v *voice) mixInto(dst []float32, frames int) bool {
	data := v.buffer.Data
	ch := v.buffer.Channels
	bufFrames := len(data) / ch
	step := v.gainStep(frames)
	g := v.gain
	fading := v.fadeStep > 0

	done := 0
	for done < frames {
		if v.cursor >= bufFrames {
			if !v.loop {
				v.deactivate()
				return true
			}
			v.cursor = 0
		}
		n := frames - done
		if rem := bufFrames - v.cursor; rem < n {
			n = rem
		}
		for i := 0; i < n; i++ {
			g += step
			if fading && g <= 0 {
				v.deactivate()
				return true
			}
			j := (done + i) * 2
			if ch == 1 {
				s := data[v.cursor+i] * g
				dst[j] += s * v.panL
				dst[j+1] += s * v.panR
			} else {
				si := (v.cursor + i) * 2
				dst[j] += data[si] * g * v.panL
				dst[j+1] += data[si+1] * g * v.panR
			}
		}
		v.cursor += n
		done += n
	}
	if fading {
		v.gain = g
	} else {
		v.gain = v.target
	}
	return false
}

// mixFeed is mixInto for spatially tracked voices: the contribution goes to
// a mono feed buffer for the spatializer instead of a bus, with stereo
// buffers downmixed and pan ignored because the spatializer positions the
// source itself.
func (v *voice) mixFeed(dst []float32, frames int) bool {
	data := v.buffer.Data
	ch := v.buffer.Channels
	bufFrames := len(data) / ch
	step := v.gainStep(frames)
	g := v.gain
	fading := v.fadeStep > 0

	done := 0
	for done < frames {
		if v.cursor >= bufFrames {
			if !v.loop {
				v.deactivate()
				return true
			}
			v.cursor = 0
		}
		n := frames - done
		if rem := bufFrames - v.cursor; rem < n {
			n = rem
		}
		for i := 0; i < n; i++ {
			g += step
			if fading && g <= 0 {
				v.deactivate()
				return true
			}
			if ch == 1 {
				dst[done+i] += data[v.cursor+i] * g
			} else {
				si := (v.cursor + i) * 2
				dst[done+i] += (data[si] + data[si+1]) * 0.5 * g
			}
		}
		v.cursor += n
		done += n
	}
	if fading {
		v.gain = g
	} else {
		v.gain = v.target
	}
	return false
}

func (v *voice) deactivate() {
	v.active = false
	v.buffer = nil
	v.fadeStep = 0
}

// voicePool is the fixed set of voice slots. Slots are addressed by index
// internally and by handle from the control side.
type voicePool struct {
	slots []voice
}

func newVoicePool(capacity int) voicePool {
	return voicePool{slots: make([]voice, capacity)}
}

// allocate returns a slot index for a new voice, preferring free slots and
// otherwise stealing. The victim is the active voice with the lowest
// priority; among equals, the lowest priority*gain score; among those, the
// oldest. A lower-priority voice is therefore always evicted before a
// higher-priority one. Returns -1 only when the pool has zero capacity.
func (p *voicePool) allocate() (slot int, stole bool) {
	if len(p.slots) == 0 {
		return -1, false
	}
	victim := -1
	for i := range p.slots {
		v := &p.slots[i]
		if !v.active {
			return i, false
		}
		if victim < 0 || stealBefore(v, &p.slots[victim]) {
			victim = i
		}
	}
	p.slots[victim].deactivate()
	return victim, true
}

// stealBefore reports whether a is a better steal victim than b.
func stealBefore(a, b *voice) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	sa, sb := a.priority*a.gain, b.priority*b.gain
	if sa != sb {
		return sa < sb
	}
	return a.started < b.started
}

// find returns the active voice with the given handle, or nil. Handles are
// never reused, so a stale handle from the control thread misses cleanly.
func (p *voicePool) find(h Handle) *voice {
	for i := range p.slots {
		if p.slots[i].active && p.slots[i].handle == h {
			return &p.slots[i]
		}
	}
	return nil
}

func (p *voicePool) countActive() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].active {
			n++
		}
	}
	return n
}
