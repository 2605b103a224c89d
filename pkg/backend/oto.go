// ABOUTME: Oto-based device backend
// ABOUTME: Bridges oto's reader pull model to the render function
package backend

import (
	"fmt"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
)

// Oto drives rendering through the oto library. Oto pulls PCM from an
// io.Reader, so a small adapter renders on demand inside Read. Note
// that oto allows only one context per process; a stopped Oto backend
// cannot be reopened with a different format.
type Oto struct {
	sampleRate  int
	channels    int
	blockFrames int

	otoCtx *oto.Context
	player *oto.Player
	render RenderFunc
	diag   func(Diagnostic)

	buf    []float32
	frames atomic.Uint64
}

// NewOto creates an oto backend.
func NewOto(config Config) *Oto {
	config = config.withDefaults()
	return &Oto{
		sampleRate:  config.SampleRate,
		channels:    config.Channels,
		blockFrames: config.BlockFrames,
		buf:         make([]float32, config.BlockFrames*config.Channels),
	}
}

// otoReader adapts the render function to the io.Reader oto expects.
type otoReader struct {
	b *Oto
}

func (r *otoReader) Read(p []byte) (int, error) {
	b := r.b
	frames := len(p) / (2 * b.channels)
	if frames == 0 {
		return 0, nil
	}
	if frames > b.blockFrames {
		frames = b.blockFrames
	}

	chunk := b.buf[:frames*b.channels]
	b.render(chunk, b.channels, frames)
	writeS16LE(p[:len(chunk)*2], chunk)
	b.frames.Add(uint64(frames))

	return len(chunk) * 2, nil
}

// Start opens the oto context and begins pulling audio.
func (o *Oto) Start(render RenderFunc) error {
	if o.player != nil {
		return fmt.Errorf("backend already started")
	}
	if render == nil {
		return fmt.Errorf("render function is nil")
	}

	op := &oto.NewContextOptions{
		SampleRate:   o.sampleRate,
		ChannelCount: o.channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	o.render = render
	o.otoCtx = ctx
	o.player = ctx.NewPlayer(&otoReader{b: o})
	o.player.Play()

	log.Infof("audio device started: %dHz, %d channels (oto)", o.sampleRate, o.channels)
	return nil
}

// Stop halts playback. The oto context is suspended rather than
// destroyed because the library keeps it for the process lifetime.
func (o *Oto) Stop() error {
	if o.player == nil {
		return nil
	}

	if err := o.player.Close(); err != nil {
		log.Warnf("oto player close: %v", err)
	}
	o.player = nil
	o.render = nil

	if err := o.otoCtx.Suspend(); err != nil {
		log.Warnf("oto context suspend: %v", err)
	}
	return nil
}

func (o *Oto) SampleRate() int {
	return o.sampleRate
}

func (o *Oto) Channels() int {
	return o.channels
}

func (o *Oto) BlockFrames() int {
	return o.blockFrames
}

func (o *Oto) FramesSinceStart() uint64 {
	return o.frames.Load()
}

func (o *Oto) SetDiagnosticFunc(fn func(Diagnostic)) {
	o.diag = fn
}
