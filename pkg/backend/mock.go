// ABOUTME: Manually clocked backend for tests and offline rendering
// ABOUTME: Renders blocks on demand instead of from a device callback
package backend

import (
	"fmt"
	"sync/atomic"
)

// Mock is a backend clocked by the caller. Tests and offline renders
// drive it with RenderBlock instead of waiting on a device.
type Mock struct {
	sampleRate  int
	channels    int
	blockFrames int

	// Record keeps a copy of everything rendered, retrievable with
	// Recorded. Set before rendering.
	Record bool

	render   RenderFunc
	diag     func(Diagnostic)
	buf      []float32
	recorded []float32
	frames   atomic.Uint64
	started  bool
}

// NewMock creates a manually clocked backend.
func NewMock(config Config) *Mock {
	config = config.withDefaults()
	return &Mock{
		sampleRate:  config.SampleRate,
		channels:    config.Channels,
		blockFrames: config.BlockFrames,
		buf:         make([]float32, config.BlockFrames*config.Channels),
	}
}

// Start registers the render function. No goroutine is spawned; audio
// moves only when RenderBlock is called.
func (m *Mock) Start(render RenderFunc) error {
	if m.started {
		return fmt.Errorf("backend already started")
	}
	if render == nil {
		return fmt.Errorf("render function is nil")
	}
	m.render = render
	m.started = true
	return nil
}

// Stop halts rendering.
func (m *Mock) Stop() error {
	m.started = false
	m.render = nil
	return nil
}

// RenderBlock renders one block and returns it. The slice is reused by
// the next call; copy it to keep it.
func (m *Mock) RenderBlock() []float32 {
	if !m.started {
		return nil
	}
	m.render(m.buf, m.channels, m.blockFrames)
	m.frames.Add(uint64(m.blockFrames))
	if m.Record {
		m.recorded = append(m.recorded, m.buf...)
	}
	return m.buf
}

// RenderBlocks renders n blocks back to back.
func (m *Mock) RenderBlocks(n int) {
	for i := 0; i < n; i++ {
		m.RenderBlock()
	}
}

// Recorded returns everything rendered while Record was set.
func (m *Mock) Recorded() []float32 {
	return m.recorded
}

// EmitDiagnostic delivers a synthetic device event, letting tests
// exercise diagnostic handling.
func (m *Mock) EmitDiagnostic(d Diagnostic) {
	if m.diag != nil {
		m.diag(d)
	}
}

func (m *Mock) SampleRate() int {
	return m.sampleRate
}

func (m *Mock) Channels() int {
	return m.channels
}

func (m *Mock) BlockFrames() int {
	return m.blockFrames
}

func (m *Mock) FramesSinceStart() uint64 {
	return m.frames.Load()
}

func (m *Mock) SetDiagnosticFunc(fn func(Diagnostic)) {
	m.diag = fn
}
