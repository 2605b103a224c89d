//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package backend

import (
	"fmt"
)

// PortAudio device backend (stub).
type PortAudio struct {
	sampleRate  int
	channels    int
	blockFrames int
}

// NewPortAudio creates a PortAudio backend.
func NewPortAudio(config Config) *PortAudio {
	config = config.withDefaults()
	return &PortAudio{
		sampleRate:  config.SampleRate,
		channels:    config.Channels,
		blockFrames: config.BlockFrames,
	}
}

// Start reports that PortAudio support is not compiled in.
func (p *PortAudio) Start(render RenderFunc) error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Stop releases nothing.
func (p *PortAudio) Stop() error {
	return nil
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
	return 0
}

func (p *PortAudio) SetDiagnosticFunc(fn func(Diagnostic)) {
}
