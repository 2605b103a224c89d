// ABOUTME: Engine facade tying the renderer, asset cache, backend and monitor together
// ABOUTME: This is the public API most applications use; game code talks to Engine only
package soundstage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Soundstage-Audio/soundstage-go/pkg/assets"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/backend"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/mixer"
	"github.com/Soundstage-Audio/soundstage-go/pkg/monitor"
	"github.com/Soundstage-Audio/soundstage-go/pkg/protocol"
	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

var (
	// ErrQueueFull means the control queue rejected a command this frame.
	// The engine state is unchanged; retry on the next frame.
	ErrQueueFull = errors.New("command queue full, retry next frame")
	// ErrClosed means the engine has been closed.
	ErrClosed = errors.New("engine closed")
)

// Handle identifies a playing sound or stream.
type Handle = mixer.Handle

// BusID indexes a configured bus; MasterBus is always 0.
type BusID = mixer.BusID

// MasterBus is the bus every engine has.
const MasterBus = mixer.MasterBus

// tapRingBlocks sizes the monitor tap ring in renderer blocks. Sixteen
// blocks at the default 512 frames is about 170 ms of slack before the
// tap starts dropping.
const tapRingBlocks = 16

// MonitorConfig enables the websocket monitor endpoint.
type MonitorConfig struct {
	// Addr is the listen address, default ":7513". Use "127.0.0.1:0" to
	// bind an ephemeral local port.
	Addr string
	// EnableTap streams the mastered output to monitors that ask for it.
	EnableTap bool
	// TapCodec is protocol.CodecPCM16 (default) or protocol.CodecOpus.
	TapCodec string
	// StatsInterval overrides the 1 s stats push period.
	StatsInterval time.Duration
	// Advertise announces the endpoint over mDNS.
	Advertise bool
}

// Config configures an Engine. The zero value is usable: mock backend,
// stereo panner, master bus only, no monitor.
type Config struct {
	// Name identifies the engine to monitors, default "soundstage".
	Name string
	// MaxVoices, MaxStreams and QueueCapacity bound the renderer pools;
	// zero picks the renderer defaults.
	MaxVoices     int
	MaxStreams    int
	QueueCapacity int
	// Buses configures buses beyond master; index i becomes BusID i+1.
	Buses []mixer.BusConfig
	// DuckRules configures sidechain ducking between buses.
	DuckRules []mixer.DuckRule
	// Spatializer receives all spatially routed audio. Nil installs the
	// built-in stereo panner. The engine owns it once New succeeds.
	Spatializer spatial.Spatializer
	// Backend drives rendering. Nil installs a mock backend, useful for
	// tests and offline rendering; real applications pass NewMalgo or
	// another backend from pkg/backend.
	Backend backend.Backend
	// Monitor, when non-nil, serves stats and a mix tap over websocket.
	Monitor *MonitorConfig
}

// Engine is the top level object. Create one with New, Start it, issue
// play and control calls from a single control goroutine, and Close it
// on shutdown. All control methods are cheap and non-blocking; audio
// work happens on the backend's callback thread.
type Engine struct {
	renderer *mixer.Renderer
	backend  backend.Backend
	cache    *assets.Cache
	monitor  *monitor.Server

	handles    atomic.Uint64
	closed     atomic.Bool
	monitorOn  sync.Once
	monitorErr error
}

// New builds an engine from config. The renderer's block size and sample
// rate follow the backend.
func New(config Config) (*Engine, error) {
	if config.Name == "" {
		config.Name = "soundstage"
	}
	be := config.Backend
	if be == nil {
		be = backend.NewMock(backend.Config{})
	}
	sampleRate := be.SampleRate()
	blockFrames := be.BlockFrames()
	channels := be.Channels()

	spat := config.Spatializer
	ownSpat := false
	if spat == nil {
		p, err := spatial.NewStereoPanner(spatial.Config{
			Channels:       channels,
			MaxBlockFrames: blockFrames,
			SampleRate:     sampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create panner: %w", err)
		}
		spat = p
		ownSpat = true
	}

	var tapProd *ring.Producer
	var tapCons *ring.Consumer
	if config.Monitor != nil && config.Monitor.EnableTap {
		tapProd, tapCons = ring.New(blockFrames * channels * tapRingBlocks)
	}

	// The renderer wants master at index 0; callers list only the extra
	// buses, so bus i of config.Buses becomes BusID i+1.
	buses := config.Buses
	if len(buses) > 0 {
		buses = append([]mixer.BusConfig{{Name: "master"}}, buses...)
	}

	r, err := mixer.New(mixer.Config{
		Channels:       channels,
		SampleRate:     sampleRate,
		MaxBlockFrames: blockFrames,
		MaxVoices:      config.MaxVoices,
		MaxStreams:     config.MaxStreams,
		QueueCapacity:  config.QueueCapacity,
		Buses:          buses,
		DuckRules:      config.DuckRules,
		Spatializer:    spat,
		Tap:            tapProd,
	})
	if err != nil {
		if ownSpat {
			spat.Close()
		}
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	e := &Engine{
		renderer: r,
		backend:  be,
		cache:    assets.NewCache(),
	}

	if config.Monitor != nil {
		mon, err := monitor.New(monitor.Config{
			Addr:          config.Monitor.Addr,
			Name:          config.Name,
			Stats:         e.protocolStats,
			StatsInterval: config.Monitor.StatsInterval,
			SampleRate:    sampleRate,
			Channels:      channels,
			BlockFrames:   blockFrames,
			Tap:           tapCons,
			TapCodec:      config.Monitor.TapCodec,
			Advertise:     config.Monitor.Advertise,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to create monitor: %w", err)
		}
		e.monitor = mon
	}
	return e, nil
}

// Start opens the audio device and begins rendering. The monitor, when
// configured, starts listening on the first call.
func (e *Engine) Start() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.monitor != nil {
		e.monitorOn.Do(func() {
			e.monitorErr = e.monitor.Start()
		})
		if e.monitorErr != nil {
			return fmt.Errorf("failed to start monitor: %w", e.monitorErr)
		}
	}
	if err := e.backend.Start(e.renderer.Render); err != nil {
		return fmt.Errorf("failed to start backend: %w", err)
	}
	log.Infof("engine started: %d Hz, %d frame blocks", e.backend.SampleRate(), e.backend.BlockFrames())
	return nil
}

// Stop pauses rendering. The engine can be started again; loaded sounds
// and renderer state survive. The monitor keeps serving while stopped.
func (e *Engine) Stop() error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.backend.Stop()
}

// Close stops the backend, shuts the monitor down and releases the
// renderer. Safe to call more than once.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	if err := e.backend.Stop(); err != nil {
		log.Warnf("backend stop: %v", err)
	}
	if e.monitor != nil {
		if err := e.monitor.Close(); err != nil {
			log.Warnf("monitor close: %v", err)
		}
	}
	return e.renderer.Close()
}

// MonitorAddr reports the monitor's listen address once Start has run,
// or "" when no monitor is configured.
func (e *Engine) MonitorAddr() string {
	if e.monitor == nil {
		return ""
	}
	return e.monitor.Addr()
}

// Cache exposes the sample cache for preloading.
func (e *Engine) Cache() *assets.Cache { return e.cache }

// Stats snapshots the renderer counters.
func (e *Engine) Stats() mixer.Stats { return e.renderer.Stats() }

// LoadSound decodes and caches an audio file. Repeated loads of the same
// path share one buffer.
func (e *Engine) LoadSound(path string) (*audio.SampleBuffer, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.cache.Load(path)
}

// PlayOptions shape a Play or PlayAt call. The zero value plays on the
// master bus, centered, at unity gain and priority.
type PlayOptions struct {
	Bus BusID
	// Gain scales the voice; zero means unity.
	Gain float32
	// Priority biases voice stealing; zero means 1, higher survives longer.
	Priority float32
	// Pan places a non-positional voice, -1 left to +1 right.
	Pan float32
	Loop bool
}

// Play starts buf as a flat voice and returns its handle.
func (e *Engine) Play(buf *audio.SampleBuffer, opts PlayOptions) (Handle, error) {
	h := e.nextHandle()
	err := e.push(mixer.Command{
		Op:       mixer.OpPlaySound,
		Handle:   h,
		Bus:      opts.Bus,
		Buffer:   buf,
		Gain:     orUnity(opts.Gain),
		Priority: orUnity(opts.Priority),
		Pan:      opts.Pan,
		Loop:     opts.Loop,
	})
	if err != nil {
		return 0, err
	}
	return h, nil
}

// PlayAt starts buf as a positional voice at position. Pan in opts is
// ignored; the spatializer places the source.
func (e *Engine) PlayAt(buf *audio.SampleBuffer, position spatial.Vec3, opts PlayOptions) (Handle, error) {
	h := e.nextHandle()
	err := e.push(mixer.Command{
		Op:       mixer.OpPlaySound,
		Handle:   h,
		Bus:      opts.Bus,
		Buffer:   buf,
		Gain:     orUnity(opts.Gain),
		Priority: orUnity(opts.Priority),
		Loop:     opts.Loop,
		Spatial:  true,
		Position: position,
	})
	if err != nil {
		return 0, err
	}
	return h, nil
}

// StopSound fades the voice out over fadeMs and frees it. Zero fadeMs
// stops at the next block boundary. Stopping a finished voice is a no-op.
func (e *Engine) StopSound(h Handle, fadeMs float32) error {
	return e.push(mixer.Command{Op: mixer.OpStopVoice, Handle: h, FadeMs: fadeMs})
}

// SetSoundGain retargets a voice or stream gain, smoothed over the next
// block.
func (e *Engine) SetSoundGain(h Handle, gain float32) error {
	return e.push(mixer.Command{Op: mixer.OpSetVoiceGain, Handle: h, Gain: gain})
}

// SetSourcePosition moves a positional voice or stream.
func (e *Engine) SetSourcePosition(h Handle, position spatial.Vec3) error {
	return e.push(mixer.Command{Op: mixer.OpSetSourcePosition, Handle: h, Position: position})
}

// SetSourceParams updates spread, occlusion and rolloff of a positional
// voice or stream.
func (e *Engine) SetSourceParams(h Handle, params spatial.SourceParams) error {
	return e.push(mixer.Command{Op: mixer.OpSetSourceParams, Handle: h, Params: params})
}

// StreamOptions shape an OpenStream call.
type StreamOptions struct {
	Bus BusID
	// Gain scales the stream; zero means unity.
	Gain float32
	Loop bool
	// Spatial routes the stream through a spatializer source at Position.
	Spatial  bool
	Position spatial.Vec3
	// BufferFrames sizes the decode-ahead ring, default one second.
	BufferFrames int
}

// OpenStream starts streaming an audio file from disk through a decode
// worker. Streams are not subject to voice stealing; when all stream
// slots are busy the renderer rejects the stream and its worker winds
// down on its own.
func (e *Engine) OpenStream(path string, opts StreamOptions) (Handle, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	s, err := assets.OpenStream(path, assets.StreamConfig{
		BufferFrames: opts.BufferFrames,
		Loop:         opts.Loop,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to open stream: %w", err)
	}
	h := e.nextHandle()
	err = e.push(mixer.Command{
		Op:       mixer.OpStartStream,
		Handle:   h,
		Bus:      opts.Bus,
		Ring:     s.Consumer(),
		Channels: s.Channels(),
		Gain:     orUnity(opts.Gain),
		Spatial:  opts.Spatial,
		Position: opts.Position,
	})
	if err != nil {
		s.Close()
		return 0, err
	}
	return h, nil
}

// StopStream fades the stream out over fadeMs and frees its slot. The
// decode worker exits once the renderer closes the ring.
func (e *Engine) StopStream(h Handle, fadeMs float32) error {
	return e.push(mixer.Command{Op: mixer.OpStopStream, Handle: h, FadeMs: fadeMs})
}

// SetBusGain retargets a bus gain, smoothed over the next block.
func (e *Engine) SetBusGain(bus BusID, gain float32) error {
	return e.push(mixer.Command{Op: mixer.OpSetBusGain, Bus: bus, Gain: gain})
}

// SetListenerPose moves the listener.
func (e *Engine) SetListenerPose(pose spatial.Pose) error {
	return e.push(mixer.Command{Op: mixer.OpSetListenerPose, Pose: pose})
}

// EnableRoomEffects toggles room acoustics on the spatializer.
func (e *Engine) EnableRoomEffects(enabled bool) error {
	return e.push(mixer.Command{Op: mixer.OpEnableRoomEffects, Enabled: enabled})
}

// SetReflection forwards early reflection properties to the spatializer.
func (e *Engine) SetReflection(props spatial.ReflectionProperties) error {
	return e.push(mixer.Command{Op: mixer.OpSetReflection, Reflection: &props})
}

// SetReverb forwards late reverb properties to the spatializer.
func (e *Engine) SetReverb(props spatial.ReverbProperties) error {
	return e.push(mixer.Command{Op: mixer.OpSetReverb, Reverb: &props})
}

func (e *Engine) nextHandle() Handle {
	return Handle(e.handles.Add(1))
}

func (e *Engine) push(cmd mixer.Command) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.renderer.Push(cmd) {
		return ErrQueueFull
	}
	return nil
}

func (e *Engine) protocolStats() protocol.Stats {
	st := e.renderer.Stats()
	return protocol.Stats{
		BlocksRendered:  st.BlocksRendered,
		CommandsApplied: st.CommandsApplied,
		CommandsDropped: st.CommandsDropped,
		CommandsIgnored: st.CommandsIgnored,
		VoicesStarted:   st.VoicesStarted,
		VoicesStolen:    st.VoicesStolen,
		StreamsStarted:  st.StreamsStarted,
		StreamsRejected: st.StreamsRejected,
		StreamUnderruns: st.StreamUnderruns,
		SpatialFaults:   st.SpatialFaults,
		RenderFaults:    st.RenderFaults,
		ActiveVoices:    st.ActiveVoices,
		ActiveStreams:   st.ActiveStreams,
		MasterPeak:      st.MasterPeak,
	}
}

func orUnity(v float32) float32 {
	if v == 0 {
		return 1
	}
	return v
}
