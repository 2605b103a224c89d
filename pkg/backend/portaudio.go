//go:build portaudio

// ABOUTME: PortAudio device backend
// ABOUTME: Cross-platform playback callback using PortAudio
package backend

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
)

// PortAudio drives rendering from a PortAudio stream callback.
type PortAudio struct {
	sampleRate  int
	channels    int
	blockFrames int

	stream *portaudio.Stream
	render RenderFunc
	diag   func(Diagnostic)

	buf    []float32
	frames atomic.Uint64
}

// NewPortAudio creates a PortAudio backend.
func NewPortAudio(config Config) *PortAudio {
	config = config.withDefaults()
	return &PortAudio{
		sampleRate:  config.SampleRate,
		channels:    config.Channels,
		blockFrames: config.BlockFrames,
		buf:         make([]float32, config.BlockFrames*config.Channels),
	}
}

// Start initializes PortAudio and opens the default output stream.
func (p *PortAudio) Start(render RenderFunc) error {
	if p.stream != nil {
		return fmt.Errorf("backend already started")
	}
	if render == nil {
		return fmt.Errorf("render function is nil")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.render = render
	stream, err := portaudio.OpenDefaultStream(0, p.channels, float64(p.sampleRate), p.blockFrames, p.callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	log.Infof("audio device started: %dHz, %d channels (portaudio)", p.sampleRate, p.channels)
	return nil
}

func (p *PortAudio) callback(out []int16) {
	frames := len(out) / p.channels
	if frames == 0 || p.render == nil {
		return
	}

	pullChunks(p.render, p.buf, p.channels, frames, p.blockFrames, func(chunk []float32, frameOffset int) {
		off := frameOffset * p.channels
		for i, s := range chunk {
			out[off+i] = audio.SampleToInt16(s)
		}
	})
	p.frames.Add(uint64(frames))
}

// Stop halts playback and terminates PortAudio.
func (p *PortAudio) Stop() error {
	if p.stream == nil {
		return nil
	}

	if err := p.stream.Stop(); err != nil {
		log.Warnf("portaudio stream stop: %v", err)
	}
	if err := p.stream.Close(); err != nil {
		log.Warnf("portaudio stream close: %v", err)
	}
	p.stream = nil
	p.render = nil

	return portaudio.Terminate()
}

func (p *PortAudio) SampleRate() int {
	return p.sampleRate
}

func (p *PortAudio) Channels() int {
	return p.channels
}

func (p *PortAudio) BlockFrames() int {
	return p.blockFrames
}

func (p *PortAudio) FramesSinceStart() uint64 {
	return p.frames.Load()
}

func (p *PortAudio) SetDiagnosticFunc(fn func(Diagnostic)) {
	p.diag = fn
}
