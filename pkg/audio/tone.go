// ABOUTME: Sine tone generator for tests, examples and stream producers
// ABOUTME: Produces interleaved float32 blocks at a fixed frequency
package audio

import "math"

// Tone generates a sine wave one block at a time. Not safe for concurrent
// use; each producer owns its own Tone.
type Tone struct {
	frequency  float64
	amplitude  float64
	sampleRate int
	channels   int
	index      uint64
}

// NewTone creates a sine generator at the given frequency.
func NewTone(frequency float64, sampleRate, channels int) *Tone {
	if sampleRate == 0 {
		sampleRate = CanonicalSampleRate
	}
	if channels == 0 {
		channels = DefaultChannels
	}
	return &Tone{
		frequency:  frequency,
		amplitude:  0.5,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// SetAmplitude sets the peak amplitude (default 0.5).
func (t *Tone) SetAmplitude(a float64) {
	t.amplitude = a
}

// Fill writes interleaved frames into dst, duplicating the wave to every
// channel, and advances the generator.
func (t *Tone) Fill(dst []float32) {
	frames := len(dst) / t.channels
	for i := 0; i < frames; i++ {
		at := float64(t.index+uint64(i)) / float64(t.sampleRate)
		s := float32(math.Sin(2*math.Pi*t.frequency*at) * t.amplitude)
		for ch := 0; ch < t.channels; ch++ {
			dst[i*t.channels+ch] = s
		}
	}
	t.index += uint64(frames)
}

// SineBuffer synthesizes an immutable SampleBuffer containing a sine tone.
// Useful as test and example material in place of decoded assets.
func SineBuffer(name string, frequency float64, frames, channels int) *SampleBuffer {
	tone := NewTone(frequency, CanonicalSampleRate, channels)
	data := make([]float32, frames*channels)
	tone.Fill(data)
	return &SampleBuffer{Name: name, Data: data, Channels: channels}
}
