// ABOUTME: Real-time renderer driving voices, streams, buses and the spatializer
// ABOUTME: Render never blocks, never allocates and always fills the output with something
package mixer

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

// Config describes a Renderer. Zero values get sensible defaults, so
// mixer.New(mixer.Config{}) yields a working stereo renderer with a single
// master bus.
type Config struct {
	// Channels is the output channel count. Only stereo output is
	// supported; the default is 2.
	Channels int
	// SampleRate in Hz, default 48000.
	SampleRate int
	// MaxBlockFrames is the largest frame count a backend may request per
	// render call. All scratch memory is sized from it. Default 512.
	MaxBlockFrames int
	// MaxVoices is the voice pool capacity, default 32.
	MaxVoices int
	// MaxStreams is the stream slot count, default 8.
	MaxStreams int
	// QueueCapacity bounds the command queue, default 256.
	QueueCapacity int
	// Buses lists the mixing buses; index 0 is master. Empty means a
	// single master bus.
	Buses []BusConfig
	// DuckRules configures sidechain ducking between buses.
	DuckRules []DuckRule
	// Spatializer, when set, receives per-source feeds and renders the
	// final output. The Renderer takes ownership and closes it. When nil,
	// spatial playback requests degrade to plain panned mixing.
	Spatializer spatial.Spatializer
	// Tap, when set, receives a copy of every rendered block, best
	// effort. Useful for monitoring and capture.
	Tap *ring.Producer
}

func (c Config) withDefaults() Config {
	if c.Channels == 0 {
		c.Channels = 2
	}
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.MaxBlockFrames == 0 {
		c.MaxBlockFrames = 512
	}
	if c.MaxVoices == 0 {
		c.MaxVoices = 32
	}
	if c.MaxStreams == 0 {
		c.MaxStreams = 8
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 256
	}
	if len(c.Buses) == 0 {
		c.Buses = []BusConfig{{Name: "master"}}
	}
	return c
}

// Renderer owns the voice pool, stream slots, bus graph, the consumer end
// of the command queue and the spatializer handle. Exactly one Render call
// may be in flight at a time; the calling backend guarantees that, the
// Renderer never locks.
type Renderer struct {
	channels   int
	sampleRate int
	maxFrames  int

	queue   *Queue
	voices  voicePool
	streams streamPool
	graph   *busGraph
	ducks   []duckState

	spat        spatial.Spatializer
	bedID       spatial.SourceID
	voiceIDs    []spatial.SourceID
	streamIDs   []spatial.SourceID
	voiceFeeds  [][]float32
	streamFeeds [][]float32

	popBuf []float32
	tap    *ring.Producer

	counters counters
	block    uint64
	applyFn  func(*Command)
	closed   atomic.Bool
}

// New builds a Renderer from config. Everything the audio thread will ever
// touch is allocated here; after New returns, Render performs no heap
// allocation. Spatializer sources are created up front, one per voice slot,
// one per stream slot, one per spatial bus and one for the master bed.
func New(config Config) (*Renderer, error) {
	config = config.withDefaults()
	if config.Channels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d: output must be stereo", config.Channels)
	}
	for i, rule := range config.DuckRules {
		if rule.Trigger < 0 || int(rule.Trigger) >= len(config.Buses) {
			return nil, fmt.Errorf("duck rule %d: trigger bus %d out of range", i, rule.Trigger)
		}
		if rule.Target < 0 || int(rule.Target) >= len(config.Buses) {
			return nil, fmt.Errorf("duck rule %d: target bus %d out of range", i, rule.Target)
		}
	}

	r := &Renderer{
		channels:   config.Channels,
		sampleRate: config.SampleRate,
		maxFrames:  config.MaxBlockFrames,
		queue:      NewQueue(config.QueueCapacity),
		voices:     newVoicePool(config.MaxVoices),
		streams:    newStreamPool(config.MaxStreams),
		graph:      newBusGraph(config.Buses, config.Channels, config.MaxBlockFrames),
		spat:       config.Spatializer,
		popBuf:     make([]float32, 2*config.MaxBlockFrames),
		tap:        config.Tap,
	}
	r.ducks = make([]duckState, len(config.DuckRules))
	for i, rule := range config.DuckRules {
		r.ducks[i] = duckState{rule: rule.withDefaults()}
	}
	r.applyFn = r.apply

	if r.spat != nil {
		if err := r.createSources(config); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) createSources(config Config) error {
	fail := func(err error) error {
		r.destroySources()
		return fmt.Errorf("creating spatial sources: %w", err)
	}
	var err error
	if r.bedID, err = r.spat.CreateSource(r.channels); err != nil {
		return fail(err)
	}
	r.voiceIDs = make([]spatial.SourceID, config.MaxVoices)
	r.voiceFeeds = make([][]float32, config.MaxVoices)
	for i := range r.voiceIDs {
		if r.voiceIDs[i], err = r.spat.CreateSource(1); err != nil {
			return fail(err)
		}
		r.voiceFeeds[i] = make([]float32, r.maxFrames)
	}
	r.streamIDs = make([]spatial.SourceID, config.MaxStreams)
	r.streamFeeds = make([][]float32, config.MaxStreams)
	for i := range r.streamIDs {
		if r.streamIDs[i], err = r.spat.CreateSource(1); err != nil {
			return fail(err)
		}
		r.streamFeeds[i] = make([]float32, r.maxFrames)
	}
	for i := range r.graph.buses {
		b := &r.graph.buses[i]
		if !b.spatial {
			continue
		}
		if b.spatialID, err = r.spat.CreateSource(r.channels); err != nil {
			return fail(err)
		}
	}
	return nil
}

func (r *Renderer) destroySources() {
	if r.spat == nil {
		return
	}
	if r.bedID != 0 {
		r.spat.DestroySource(r.bedID)
		r.bedID = 0
	}
	for _, id := range r.voiceIDs {
		if id != 0 {
			r.spat.DestroySource(id)
		}
	}
	for _, id := range r.streamIDs {
		if id != 0 {
			r.spat.DestroySource(id)
		}
	}
	for i := range r.graph.buses {
		if id := r.graph.buses[i].spatialID; id != 0 {
			r.spat.DestroySource(id)
		}
	}
}

// Push enqueues a command from the control thread. It returns false and
// drops the command when the queue is full; the drop is counted and the
// caller may retry next frame. Exactly one goroutine may call Push.
func (r *Renderer) Push(cmd Command) bool {
	return r.queue.Push(cmd)
}

// Channels reports the output channel count.
func (r *Renderer) Channels() int { return r.channels }

// SampleRate reports the output rate in Hz.
func (r *Renderer) SampleRate() int { return r.sampleRate }

// MaxBlockFrames reports the largest per-call frame count Render accepts.
func (r *Renderer) MaxBlockFrames() int { return r.maxFrames }

// Stats snapshots the renderer counters. Safe from any goroutine.
func (r *Renderer) Stats() Stats {
	c := &r.counters
	return Stats{
		BlocksRendered:  c.blocksRendered.Load(),
		CommandsApplied: c.commandsApplied.Load(),
		CommandsDropped: r.queue.Dropped(),
		CommandsIgnored: c.commandsIgnored.Load(),
		VoicesStarted:   c.voicesStarted.Load(),
		VoicesStolen:    c.voicesStolen.Load(),
		StreamsStarted:  c.streamsStarted.Load(),
		StreamsRejected: c.streamsRejected.Load(),
		StreamUnderruns: c.streamUnderruns.Load(),
		SpatialFaults:   c.spatialFaults.Load(),
		RenderFaults:    c.renderFaults.Load(),
		ActiveVoices:    int(c.activeVoices.Load()),
		ActiveStreams:   int(c.activeStreams.Load()),
		MasterPeak:      math.Float32frombits(c.masterPeak.Load()),
	}
}

// Render fills out with the next block of audio. The backend calls this on
// its real-time thread with a buffer of exactly channels*frames floats.
// The call always returns with the buffer fully written: the spatialized
// mix when the spatializer succeeds, the raw mix when it fails, silence
// when the request itself is malformed or the renderer is closed.
func (r *Renderer) Render(out []float32, channels, frames int) {
	if r.closed.Load() {
		zeroSamples(out)
		return
	}
	if channels != r.channels || frames <= 0 || frames > r.maxFrames || len(out) != channels*frames {
		zeroSamples(out)
		r.counters.renderFaults.Add(1)
		return
	}
	samples := channels * frames
	r.block++

	n := r.queue.DrainInto(r.applyFn)
	if n > 0 {
		r.counters.commandsApplied.Add(uint64(n))
	}

	r.graph.beginBlock(samples)
	if r.spat != nil {
		for i := range r.voiceFeeds {
			zeroSamples(r.voiceFeeds[i][:frames])
		}
		for i := range r.streamFeeds {
			zeroSamples(r.streamFeeds[i][:frames])
		}
	}

	for i := range r.voices.slots {
		v := &r.voices.slots[i]
		if !v.active {
			continue
		}
		if v.spatial {
			v.mixFeed(r.voiceFeeds[i], frames)
		} else {
			v.mixInto(r.graph.buses[v.bus].scratch, frames)
		}
	}

	for i := range r.streams.slots {
		s := &r.streams.slots[i]
		if !s.active {
			continue
		}
		var underrun bool
		if s.spatial {
			_, underrun = s.mixFeed(r.streamFeeds[i], frames, r.popBuf)
		} else {
			_, underrun = s.mixInto(r.graph.buses[s.bus].scratch, frames, r.popBuf)
		}
		if underrun {
			r.counters.streamUnderruns.Add(1)
		}
	}

	r.graph.measurePeaks(samples)
	updateDucking(r.ducks, r.graph, frames, r.sampleRate)
	r.graph.applyGainAndDuck(frames, channels)
	r.graph.sumIntoMaster(samples)

	filled := false
	if r.spat != nil {
		r.feedSpatializer(samples, frames)
		filled = r.spat.FillOutput(out)
		if !filled {
			r.counters.spatialFaults.Add(1)
		}
	}
	if !filled {
		r.rawMix(out, samples, frames)
	}

	r.finishBlock(out)
}

// feedSpatializer pushes every source's pre-spatialization contribution.
// Every slot is fed every block, active or not; a voice that finished
// mid-block still has tail content in its feed, and idle slots feed
// silence, which keeps the spatializer's per-source state advancing
// uniformly.
func (r *Renderer) feedSpatializer(samples, frames int) {
	for i := range r.voiceFeeds {
		if err := r.spat.FeedSource(r.voiceIDs[i], r.voiceFeeds[i][:frames]); err != nil {
			r.counters.spatialFaults.Add(1)
		}
	}
	for i := range r.streamFeeds {
		if err := r.spat.FeedSource(r.streamIDs[i], r.streamFeeds[i][:frames]); err != nil {
			r.counters.spatialFaults.Add(1)
		}
	}
	for i := range r.graph.buses {
		b := &r.graph.buses[i]
		if !b.spatial {
			continue
		}
		if err := r.spat.FeedSource(b.spatialID, b.scratch[:samples]); err != nil {
			r.counters.spatialFaults.Add(1)
		}
	}
	if err := r.spat.FeedSource(r.bedID, r.graph.master().scratch[:samples]); err != nil {
		r.counters.spatialFaults.Add(1)
	}
}

// rawMix writes the non-spatialized mix into out so playback never goes
// silent on a spatializer fault. Spatially routed sources bypass the
// master bus, so their feeds are folded back in here, centered at equal
// power; spatial buses are added post-gain.
func (r *Renderer) rawMix(out []float32, samples, frames int) {
	copy(out, r.graph.master().scratch[:samples])
	if r.spat == nil {
		return
	}
	for i := range r.graph.buses {
		b := &r.graph.buses[i]
		if !b.spatial {
			continue
		}
		for j, v := range b.scratch[:samples] {
			out[j] += v
		}
	}
	const center = 0.70710678
	for i := range r.voiceFeeds {
		for f, v := range r.voiceFeeds[i][:frames] {
			out[f*2] += v * center
			out[f*2+1] += v * center
		}
	}
	for i := range r.streamFeeds {
		for f, v := range r.streamFeeds[i][:frames] {
			out[f*2] += v * center
			out[f*2+1] += v * center
		}
	}
}

func (r *Renderer) finishBlock(out []float32) {
	peak := float32(0)
	for _, v := range out {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	r.counters.setMasterPeak(peak)
	r.counters.activeVoices.Store(int32(r.voices.countActive()))
	r.counters.activeStreams.Store(int32(r.streams.countActive()))
	r.counters.blocksRendered.Add(1)
	if r.tap != nil {
		r.tap.Write(out)
	}
}

// apply dispatches one drained command. Commands referencing unknown
// handles or invalid buses are no-ops, counted but never fatal.
func (r *Renderer) apply(cmd *Command) {
	switch cmd.Op {
	case OpPlaySound:
		r.applyPlaySound(cmd)
	case OpStartStream:
		r.applyStartStream(cmd)
	case OpStopVoice:
		if v := r.voices.find(cmd.Handle); v != nil {
			v.beginFade(cmd.FadeMs, r.sampleRate)
		} else {
			r.counters.commandsIgnored.Add(1)
		}
	case OpStopStream:
		if s := r.streams.find(cmd.Handle); s != nil {
			s.beginFade(cmd.FadeMs, r.sampleRate)
		} else {
			r.counters.commandsIgnored.Add(1)
		}
	case OpSetVoiceGain:
		gain := cmd.Gain
		if gain < 0 {
			gain = 0
		}
		if v := r.voices.find(cmd.Handle); v != nil {
			if v.fadeStep == 0 {
				v.target = gain
			}
		} else if s := r.streams.find(cmd.Handle); s != nil {
			if s.fadeStep == 0 {
				s.target = gain
			}
		} else {
			r.counters.commandsIgnored.Add(1)
		}
	case OpSetBusGain:
		if !r.graph.valid(cmd.Bus) {
			r.counters.commandsIgnored.Add(1)
			return
		}
		gain := cmd.Gain
		if gain < 0 {
			gain = 0
		}
		r.graph.buses[cmd.Bus].target = gain
	case OpSetSourcePosition:
		if v := r.voices.find(cmd.Handle); v != nil {
			if v.spatial {
				r.spatialCall(r.spat.SetSourcePosition(v.spatialID, cmd.Position))
			}
		} else if s := r.streams.find(cmd.Handle); s != nil {
			if s.spatial {
				r.spatialCall(r.spat.SetSourcePosition(s.spatialID, cmd.Position))
			}
		} else {
			r.counters.commandsIgnored.Add(1)
		}
	case OpSetSourceParams:
		if v := r.voices.find(cmd.Handle); v != nil {
			if v.spatial {
				r.spatialCall(r.spat.SetSourceParams(v.spatialID, cmd.Params))
			}
		} else if s := r.streams.find(cmd.Handle); s != nil {
			if s.spatial {
				r.spatialCall(r.spat.SetSourceParams(s.spatialID, cmd.Params))
			}
		} else {
			r.counters.commandsIgnored.Add(1)
		}
	case OpSetListenerPose:
		if r.spat != nil {
			r.spatialCall(r.spat.SetListenerPose(cmd.Pose))
		}
	case OpEnableRoomEffects:
		if r.spat != nil {
			r.spatialCall(r.spat.EnableRoomEffects(cmd.Enabled))
		}
	case OpSetReflection:
		if cmd.Reflection == nil {
			r.counters.commandsIgnored.Add(1)
			return
		}
		if r.spat != nil {
			r.spatialCall(r.spat.SetReflectionProperties(*cmd.Reflection))
		}
	case OpSetReverb:
		if cmd.Reverb == nil {
			r.counters.commandsIgnored.Add(1)
			return
		}
		if r.spat != nil {
			r.spatialCall(r.spat.SetReverbProperties(*cmd.Reverb))
		}
	default:
		r.counters.commandsIgnored.Add(1)
	}
}

func (r *Renderer) applyPlaySound(cmd *Command) {
	buf := cmd.Buffer
	if buf == nil || len(buf.Data) == 0 || (buf.Channels != 1 && buf.Channels != 2) || !r.graph.valid(cmd.Bus) {
		r.counters.commandsIgnored.Add(1)
		return
	}
	slot, stole := r.voices.allocate()
	if slot < 0 {
		r.counters.commandsIgnored.Add(1)
		return
	}
	if stole {
		r.counters.voicesStolen.Add(1)
	}
	v := &r.voices.slots[slot]
	v.start(cmd.Handle, buf, cmd, r.block)
	v.spatial = cmd.Spatial && r.spat != nil
	if v.spatial {
		v.spatialID = r.voiceIDs[slot]
		r.resetSource(v.spatialID, cmd)
	}
	r.counters.voicesStarted.Add(1)
}

func (r *Renderer) applyStartStream(cmd *Command) {
	if cmd.Ring == nil || !r.graph.valid(cmd.Bus) {
		if cmd.Ring != nil {
			cmd.Ring.Close()
		}
		r.counters.commandsIgnored.Add(1)
		return
	}
	slot := r.streams.allocate()
	if slot < 0 {
		cmd.Ring.Close()
		r.counters.streamsRejected.Add(1)
		return
	}
	s := &r.streams.slots[slot]
	s.start(cmd.Handle, cmd.Ring, cmd, r.block)
	s.spatial = cmd.Spatial && r.spat != nil
	if s.spatial {
		s.spatialID = r.streamIDs[slot]
		r.resetSource(s.spatialID, cmd)
	}
	r.counters.streamsStarted.Add(1)
}

// resetSource clears leftover state on a reused per-slot spatial source.
func (r *Renderer) resetSource(id spatial.SourceID, cmd *Command) {
	r.spatialCall(r.spat.SetSourceGain(id, 1))
	r.spatialCall(r.spat.SetSourcePosition(id, cmd.Position))
	r.spatialCall(r.spat.SetSourceParams(id, cmd.Params))
}

func (r *Renderer) spatialCall(err error) {
	if err != nil {
		r.counters.spatialFaults.Add(1)
	}
}

// Close releases spatializer sources, closes the spatializer and the tap.
// The device backend must have stopped calling Render first; a Render call
// after Close outputs silence. Close is idempotent.
func (r *Renderer) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	var err error
	if r.spat != nil {
		r.destroySources()
		err = r.spat.Close()
	}
	if r.tap != nil {
		r.tap.Close()
	}
	for i := range r.streams.slots {
		if r.streams.slots[i].active {
			r.streams.slots[i].deactivate()
		}
	}
	return err
}

func zeroSamples(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
