// ABOUTME: StereoPanner, the reference Spatializer implementation
// ABOUTME: Constant-power azimuth panning with inverse-distance rolloff, no HRTF
package spatial

import "math"

// pannerSource tracks one registered source.
type pannerSource struct {
	active     bool
	channels   int
	gain       float32
	positional bool
	pos        Vec3
	params     SourceParams
}

// StereoPanner is a pure-Go Spatializer for stereo output. It pans
// positional sources by azimuth relative to the listener with constant
// power, attenuates by inverse distance and occlusion, and passes
// non-positional sources straight through. Room property setters are
// accepted; only the reverb gain is applied, as a wet trim on positional
// sources. It performs no HRTF convolution or room acoustics. It exists
// as the default collaborator for tests, tools and machines without a
// native spatial DSP engine.
//
// Not safe for concurrent use: the renderer serializes all calls onto the
// audio thread, and sources are registered before rendering starts.
type StereoPanner struct {
	cfg      Config
	accum    []float32
	sources  []pannerSource
	listener Pose
	roomOn   bool
	roomGain float32
	closed   bool
}

// NewStereoPanner creates a panner for the given block shape. Output must
// be stereo.
func NewStereoPanner(cfg Config) (*StereoPanner, error) {
	if cfg.Channels != 2 {
		return nil, ErrBadBufferSize
	}
	if cfg.MaxBlockFrames <= 0 {
		return nil, ErrBadBufferSize
	}
	return &StereoPanner{
		cfg:      cfg,
		accum:    make([]float32, cfg.Channels*cfg.MaxBlockFrames),
		listener: IdentityPose(),
		roomGain: 1,
	}, nil
}

// CreateSource registers a source and returns its id.
func (p *StereoPanner) CreateSource(channels int) (SourceID, error) {
	if p.closed {
		return 0, ErrClosed
	}
	if channels != 1 && channels != 2 {
		return 0, ErrBadBufferSize
	}
	p.sources = append(p.sources, pannerSource{
		active:   true,
		channels: channels,
		gain:     1,
		params:   SourceParams{Rolloff: 1},
	})
	return SourceID(len(p.sources)), nil
}

// DestroySource releases a source id.
func (p *StereoPanner) DestroySource(id SourceID) error {
	s, err := p.source(id)
	if err != nil {
		return err
	}
	s.active = false
	return nil
}

func (p *StereoPanner) source(id SourceID) (*pannerSource, error) {
	if p.closed {
		return nil, ErrClosed
	}
	i := int(id) - 1
	if i < 0 || i >= len(p.sources) || !p.sources[i].active {
		return nil, ErrInvalidSource
	}
	return &p.sources[i], nil
}

// FeedSource mixes one block of source audio into the accumulator.
func (p *StereoPanner) FeedSource(id SourceID, interleaved []float32) error {
	s, err := p.source(id)
	if err != nil {
		return err
	}
	if len(interleaved)%s.channels != 0 {
		return ErrBadBufferSize
	}
	frames := len(interleaved) / s.channels
	if frames > p.cfg.MaxBlockFrames {
		return ErrBadBufferSize
	}

	if !s.positional {
		p.mixDirect(s, interleaved, frames)
		return nil
	}
	p.mixPanned(s, interleaved, frames)
	return nil
}

// mixDirect adds a non-positional source at its gain, mono duplicated to
// both channels, stereo channel for channel.
func (p *StereoPanner) mixDirect(s *pannerSource, in []float32, frames int) {
	if s.channels == 2 {
		for i := 0; i < frames*2; i++ {
			p.accum[i] += in[i] * s.gain
		}
		return
	}
	for i := 0; i < frames; i++ {
		v := in[i] * s.gain
		p.accum[i*2] += v
		p.accum[i*2+1] += v
	}
}

// mixPanned renders a positional source: downmix to mono, attenuate by
// distance and occlusion, then constant-power pan by azimuth.
func (p *StereoPanner) mixPanned(s *pannerSource, in []float32, frames int) {
	gainL, gainR := p.panGains(s)
	if s.channels == 1 {
		for i := 0; i < frames; i++ {
			p.accum[i*2] += in[i] * gainL
			p.accum[i*2+1] += in[i] * gainR
		}
		return
	}
	for i := 0; i < frames; i++ {
		mono := (in[i*2] + in[i*2+1]) * 0.5
		p.accum[i*2] += mono * gainL
		p.accum[i*2+1] += mono * gainR
	}
}

// panGains computes the left/right gains for a positional source from the
// listener-relative azimuth, distance and occlusion.
func (p *StereoPanner) panGains(s *pannerSource) (float32, float32) {
	dx := float64(s.pos.X - p.listener.Position.X)
	dy := float64(s.pos.Y - p.listener.Position.Y)
	dz := float64(s.pos.Z - p.listener.Position.Z)
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

	fwd := p.listener.Forward
	up := p.listener.Up
	// right = forward x up
	rx := float64(fwd.Y*up.Z - fwd.Z*up.Y)
	ry := float64(fwd.Z*up.X - fwd.X*up.Z)
	rz := float64(fwd.X*up.Y - fwd.Y*up.X)

	var pan float64
	if dist > 1e-6 {
		pan = (dx*rx + dy*ry + dz*rz) / dist
	}
	// Spread pulls the image back toward center
	pan *= float64(1 - s.params.Spread)
	if pan > 1 {
		pan = 1
	} else if pan < -1 {
		pan = -1
	}

	atten := float64(s.gain) * float64(1-s.params.Occlusion)
	if s.params.Rolloff > 0 {
		atten /= 1 + float64(s.params.Rolloff)*dist
	}
	if p.roomOn {
		atten *= float64(p.roomGain)
	}

	// Constant power: gainL^2 + gainR^2 == atten^2
	angle := (pan + 1) * math.Pi / 4
	return float32(atten * math.Cos(angle)), float32(atten * math.Sin(angle))
}

// SetSourcePosition moves a source and marks it positional.
func (p *StereoPanner) SetSourcePosition(id SourceID, pos Vec3) error {
	s, err := p.source(id)
	if err != nil {
		return err
	}
	s.pos = pos
	s.positional = true
	return nil
}

// SetSourceGain sets a source's linear gain.
func (p *StereoPanner) SetSourceGain(id SourceID, gain float32) error {
	s, err := p.source(id)
	if err != nil {
		return err
	}
	s.gain = gain
	return nil
}

// SetSourceParams sets spread, occlusion and rolloff.
func (p *StereoPanner) SetSourceParams(id SourceID, params SourceParams) error {
	s, err := p.source(id)
	if err != nil {
		return err
	}
	s.params = params
	return nil
}

// SetListenerPose moves the listener.
func (p *StereoPanner) SetListenerPose(pose Pose) error {
	if p.closed {
		return ErrClosed
	}
	p.listener = pose
	return nil
}

// EnableRoomEffects toggles the room gain trim.
func (p *StereoPanner) EnableRoomEffects(enabled bool) error {
	if p.closed {
		return ErrClosed
	}
	p.roomOn = enabled
	return nil
}

// SetReflectionProperties accepts reflection properties. The panner does
// not model early reflections, so they are ignored.
func (p *StereoPanner) SetReflectionProperties(props ReflectionProperties) error {
	if p.closed {
		return ErrClosed
	}
	return nil
}

// SetReverbProperties accepts reverb properties. The panner keeps only the
// gain.
func (p *StereoPanner) SetReverbProperties(props ReverbProperties) error {
	if p.closed {
		return ErrClosed
	}
	if props.Gain > 0 {
		p.roomGain = props.Gain
	}
	return nil
}

// FillOutput copies the accumulated mix into out and clears the
// accumulator for the next block.
func (p *StereoPanner) FillOutput(out []float32) bool {
	if p.closed {
		return false
	}
	if len(out) > len(p.accum) || len(out)%p.cfg.Channels != 0 {
		return false
	}
	copy(out, p.accum[:len(out)])
	block := p.accum[:len(out)]
	for i := range block {
		block[i] = 0
	}
	return true
}

// Close shuts the panner down; FillOutput reports failure afterwards.
func (p *StereoPanner) Close() error {
	p.closed = true
	return nil
}
