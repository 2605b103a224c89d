// ABOUTME: Audio type definitions for the engine's canonical sample format
// ABOUTME: Defines Format, SampleBuffer and float32/int16 sample conversions
package audio

import "time"

const (
	// CanonicalSampleRate is the engine-wide sample rate. Everything the
	// mixer touches has been resampled to this rate at load time.
	CanonicalSampleRate = 48000

	// DefaultChannels is the engine's default output channel count.
	DefaultChannels = 2
)

// Format describes a PCM stream shape.
type Format struct {
	SampleRate int
	Channels   int
}

// Canonical returns the engine's canonical output format.
func Canonical() Format {
	return Format{SampleRate: CanonicalSampleRate, Channels: DefaultChannels}
}

// SampleBuffer is a fully decoded sound effect: interleaved float32 PCM at
// the canonical sample rate. Buffers are immutable once published; the asset
// cache and any number of playing voices share the same instance.
type SampleBuffer struct {
	Name     string
	Data     []float32
	Channels int
}

// Frames returns the number of sample frames in the buffer.
func (b *SampleBuffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the buffer's play time at the canonical rate.
func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(b.Frames()) * time.Second / CanonicalSampleRate
}

// Clamp limits a sample to the [-1, 1] range.
func Clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// SampleToInt16 converts a float32 sample to int16 with clamping.
func SampleToInt16(s float32) int16 {
	return int16(Clamp(s) * 32767)
}

// SampleFromInt16 converts an int16 sample to float32.
func SampleFromInt16(s int16) float32 {
	return float32(s) / 32768
}

// PCM16Bytes encodes float32 samples as 16-bit little-endian PCM into dst.
// dst must hold at least len(src)*2 bytes. Returns the bytes written.
func PCM16Bytes(dst []byte, src []float32) int {
	for i, s := range src {
		v := uint16(SampleToInt16(s))
		dst[i*2] = byte(v)
		dst[i*2+1] = byte(v >> 8)
	}
	return len(src) * 2
}

// SamplesFromPCM16 decodes 16-bit little-endian PCM bytes into float32
// samples. Returns the samples written (len(src)/2).
func SamplesFromPCM16(dst []float32, src []byte) int {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		v := int16(uint16(src[i*2]) | uint16(src[i*2+1])<<8)
		dst[i] = SampleFromInt16(v)
	}
	return n
}
