// ABOUTME: Audio backend interface definition
// ABOUTME: Common pull-model interface for playback device backends
package backend

import (
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// RenderFunc fills out with frames interleaved float32 frames. It is
// invoked on the backend's callback thread and must not block.
type RenderFunc func(out []float32, channels, frames int)

// DiagnosticKind classifies a device event.
type DiagnosticKind int

const (
	// DiagnosticUnderrun means the device ran out of rendered audio.
	DiagnosticUnderrun DiagnosticKind = iota

	// DiagnosticDeviceLost means the device stopped outside our control,
	// typically because it was unplugged.
	DiagnosticDeviceLost

	// DiagnosticBlockSizeChanged means the device requested a block
	// size different from the configured one.
	DiagnosticBlockSizeChanged
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticUnderrun:
		return "underrun"
	case DiagnosticDeviceLost:
		return "device lost"
	case DiagnosticBlockSizeChanged:
		return "block size changed"
	default:
		return "unknown"
	}
}

// Diagnostic reports a device event to the control plane.
type Diagnostic struct {
	Kind   DiagnosticKind
	Detail string
}

// Backend drives a render function from a playback device.
type Backend interface {
	// Start opens the device and begins pulling audio from render.
	Start(render RenderFunc) error

	// Stop halts playback and releases the device.
	Stop() error

	// SampleRate returns the device sample rate.
	SampleRate() int

	// Channels returns the device channel count.
	Channels() int

	// BlockFrames returns the nominal callback block size in frames.
	BlockFrames() int

	// FramesSinceStart returns the number of frames rendered so far.
	FramesSinceStart() uint64

	// SetDiagnosticFunc registers a callback for device events. Must be
	// called before Start.
	SetDiagnosticFunc(fn func(Diagnostic))
}

// Config holds the device format shared by all backends. Zero values
// select the engine defaults.
type Config struct {
	SampleRate  int // default 48000
	Channels    int // default 2
	BlockFrames int // default 512
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = audio.CanonicalSampleRate
	}
	if c.Channels == 0 {
		c.Channels = audio.DefaultChannels
	}
	if c.BlockFrames == 0 {
		c.BlockFrames = 512
	}
	return c
}

// pullChunks renders frames through render in blocks of at most
// blockFrames, handing each rendered chunk and its frame offset to
// sink. Device callbacks use it to honor the render function's block
// size limit whatever the hardware asks for.
func pullChunks(render RenderFunc, buf []float32, channels, frames, blockFrames int, sink func(chunk []float32, frameOffset int)) {
	for offset := 0; offset < frames; {
		n := frames - offset
		if n > blockFrames {
			n = blockFrames
		}
		chunk := buf[:n*channels]
		render(chunk, channels, n)
		sink(chunk, offset)
		offset += n
	}
}

// writeS16LE converts float32 samples to 16-bit little-endian bytes.
func writeS16LE(dst []byte, src []float32) {
	for i, s := range src {
		v := audio.SampleToInt16(s)
		dst[i*2] = byte(v)
		dst[i*2+1] = byte(v >> 8)
	}
}
