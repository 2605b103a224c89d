// ABOUTME: Malgo-based device backend
// ABOUTME: Pulls rendered audio from the miniaudio playback callback
package backend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
)

// Malgo drives rendering from a miniaudio playback device. This is the
// primary real-device backend; output is converted to signed 16-bit in
// the callback.
type Malgo struct {
	sampleRate  int
	channels    int
	blockFrames int

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	render   RenderFunc
	diag     func(Diagnostic)

	buf       []float32
	frames    atomic.Uint64
	lastBlock int
	stopping  atomic.Bool
	mu        sync.Mutex
}

// NewMalgo creates a miniaudio backend.
func NewMalgo(config Config) *Malgo {
	config = config.withDefaults()
	return &Malgo{
		sampleRate:  config.SampleRate,
		channels:    config.Channels,
		blockFrames: config.BlockFrames,
		buf:         make([]float32, config.BlockFrames*config.Channels),
	}
}

// Start opens the playback device and begins pulling audio.
func (m *Malgo) Start(render RenderFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("backend already started")
	}
	if render == nil {
		return fmt.Errorf("render function is nil")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.blockFrames)
	deviceConfig.Alsa.NoMMap = 1

	m.render = render
	m.stopping.Store(false)

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
		Stop: func() {
			if !m.stopping.Load() && m.diag != nil {
				m.diag(Diagnostic{Kind: DiagnosticDeviceLost, Detail: "device stopped"})
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.malgoCtx = ctx
	m.device = device

	log.Infof("audio device started: %dHz, %d channels (malgo)", m.sampleRate, m.channels)
	return nil
}

// dataCallback fills the device buffer. Oversized requests are rendered
// in block-sized chunks so the render function never sees more than
// BlockFrames at once.
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	frames := int(frameCount)
	if frames == 0 || m.render == nil {
		return
	}

	if frames != m.blockFrames && frames != m.lastBlock && m.diag != nil {
		m.diag(Diagnostic{
			Kind:   DiagnosticBlockSizeChanged,
			Detail: fmt.Sprintf("device requested %d frames, configured %d", frames, m.blockFrames),
		})
	}
	m.lastBlock = frames

	pullChunks(m.render, m.buf, m.channels, frames, m.blockFrames, func(chunk []float32, frameOffset int) {
		off := frameOffset * m.channels * 2
		writeS16LE(pOutput[off:off+len(chunk)*2], chunk)
	})
	m.frames.Add(uint64(frames))
}

// Stop halts playback and releases the device.
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}

	m.stopping.Store(true)
	if err := m.device.Stop(); err != nil {
		log.Warnf("device stop: %v", err)
	}
	m.device.Uninit()
	m.device = nil

	if err := m.malgoCtx.Uninit(); err != nil {
		log.Warnf("malgo context uninit: %v", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
	m.render = nil

	return nil
}

func (m *Malgo) SampleRate() int {
	return m.sampleRate
}

func (m *Malgo) Channels() int {
	return m.channels
}

func (m *Malgo) BlockFrames() int {
	return m.blockFrames
}

func (m *Malgo) FramesSinceStart() uint64 {
	return m.frames.Load()
}

func (m *Malgo) SetDiagnosticFunc(fn func(Diagnostic)) {
	m.diag = fn
}
