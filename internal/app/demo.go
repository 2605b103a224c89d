// ABOUTME: Demo scene orchestration between the TUI and the engine
// ABOUTME: Maps key events to engine calls, drives the orbit and pushes stats back
package app

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/Soundstage-Audio/soundstage-go/internal/ui"
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/log"
	"github.com/Soundstage-Audio/soundstage-go/pkg/mixer"
	"github.com/Soundstage-Audio/soundstage-go/pkg/soundstage"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

// Bus layout of the demo engine.
const (
	BusMusic soundstage.BusID = iota + 1
	BusSFX
	BusVoice
	BusAmbience
)

// Buses returns the demo bus configuration.
func Buses() []mixer.BusConfig {
	return []mixer.BusConfig{
		{Name: "music"},
		{Name: "sfx"},
		{Name: "voice"},
		{Name: "ambience"},
	}
}

// DuckRules makes voice lines push music and ambience down while they play.
func DuckRules() []mixer.DuckRule {
	return []mixer.DuckRule{
		{Trigger: mixer.BusID(BusVoice), Target: mixer.BusID(BusMusic), Attenuation: 0.25, ReleaseMs: 400},
		{Trigger: mixer.BusID(BusVoice), Target: mixer.BusID(BusAmbience), Attenuation: 0.4, ReleaseMs: 400},
	}
}

// Config shapes a demo run.
type Config struct {
	// Auto runs a scripted scene instead of waiting for key events.
	Auto bool
}

// Demo drives the interactive scene. One goroutine runs the event loop;
// the TUI and the audio callback live elsewhere.
type Demo struct {
	config  Config
	engine  *soundstage.Engine
	tui     *ui.TUI
	control *ui.Control

	footstep *audio.SampleBuffer
	voice    *audio.SampleBuffer
	music    *audio.SampleBuffer
	rain     *audio.SampleBuffer
	hum      *audio.SampleBuffer

	musicOn    bool
	musicH     soundstage.Handle
	ambienceOn bool
	ambienceH  soundstage.Handle
	orbitOn    bool
	orbitH     soundstage.Handle
	orbitAngle float64
	roomOn     bool

	goroutines int
	memAlloc   uint64
	rng        *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a demo around an engine. The TUI and control may be nil for
// headless runs.
func New(engine *soundstage.Engine, t *ui.TUI, control *ui.Control, config Config) *Demo {
	ctx, cancel := context.WithCancel(context.Background())
	return &Demo{
		config:   config,
		engine:   engine,
		tui:      t,
		control:  control,
		footstep: Footstep(),
		voice:    VoiceLine(),
		music:    MusicLoop(),
		rain:     RainLoop(),
		hum:      OrbitHum(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run processes events until Stop. Blocking; run it in a goroutine when
// the TUI owns the main one.
func (d *Demo) Run() error {
	statsTicker := time.NewTicker(500 * time.Millisecond)
	defer statsTicker.Stop()
	runtimeTicker := time.NewTicker(2 * time.Second)
	defer runtimeTicker.Stop()
	orbitTicker := time.NewTicker(50 * time.Millisecond)
	defer orbitTicker.Stop()

	var events chan ui.Event
	if d.control != nil {
		events = d.control.Events
	}

	var script <-chan time.Time
	if d.config.Auto {
		d.handleEvent(ui.EventToggleMusic)
		d.handleEvent(ui.EventToggleAmbience)
		d.handleEvent(ui.EventToggleOrbit)
		d.handleEvent(ui.EventToggleRoom)
		scriptTicker := time.NewTicker(2500 * time.Millisecond)
		defer scriptTicker.Stop()
		script = scriptTicker.C
	}

	step := 0
	for {
		select {
		case ev := <-events:
			d.handleEvent(ev)
		case <-script:
			step++
			if step%4 == 0 {
				d.handleEvent(ui.EventVoiceLine)
			} else {
				d.handleEvent(ui.EventFootstep)
			}
		case <-orbitTicker.C:
			d.advanceOrbit()
		case <-runtimeTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			d.goroutines = runtime.NumGoroutine()
			d.memAlloc = m.Alloc
		case <-statsTicker.C:
			d.pushStats()
		case <-d.ctx.Done():
			return nil
		}
	}
}

// Stop ends the event loop.
func (d *Demo) Stop() {
	d.cancel()
}

func (d *Demo) handleEvent(ev ui.Event) {
	switch ev {
	case ui.EventFootstep:
		angle := d.rng.Float64() * 2 * math.Pi
		dist := 1.5 + d.rng.Float64()*1.5
		pos := spatial.Vec3{X: float32(math.Cos(angle) * dist), Z: float32(math.Sin(angle) * dist)}
		if _, err := d.engine.PlayAt(d.footstep, pos, soundstage.PlayOptions{Bus: BusSFX}); err != nil {
			log.Warnf("footstep: %v", err)
		}

	case ui.EventToggleMusic:
		if d.musicOn {
			if err := d.engine.StopSound(d.musicH, 400); err != nil {
				log.Warnf("stop music: %v", err)
				return
			}
			d.musicOn = false
		} else {
			h, err := d.engine.Play(d.music, soundstage.PlayOptions{Bus: BusMusic, Gain: 0.9, Loop: true})
			if err != nil {
				log.Warnf("start music: %v", err)
				return
			}
			d.musicH = h
			d.musicOn = true
		}

	case ui.EventToggleAmbience:
		if d.ambienceOn {
			if err := d.engine.StopSound(d.ambienceH, 600); err != nil {
				log.Warnf("stop ambience: %v", err)
				return
			}
			d.ambienceOn = false
		} else {
			h, err := d.engine.Play(d.rain, soundstage.PlayOptions{Bus: BusAmbience, Gain: 0.7, Loop: true})
			if err != nil {
				log.Warnf("start ambience: %v", err)
				return
			}
			d.ambienceH = h
			d.ambienceOn = true
		}

	case ui.EventVoiceLine:
		if _, err := d.engine.Play(d.voice, soundstage.PlayOptions{Bus: BusVoice, Priority: 4}); err != nil {
			log.Warnf("voice line: %v", err)
		}

	case ui.EventToggleOrbit:
		if d.orbitOn {
			if err := d.engine.StopSound(d.orbitH, 200); err != nil {
				log.Warnf("stop orbit: %v", err)
				return
			}
			d.orbitOn = false
		} else {
			h, err := d.engine.PlayAt(d.hum, d.orbitPos(), soundstage.PlayOptions{Bus: BusSFX, Gain: 0.6, Loop: true})
			if err != nil {
				log.Warnf("start orbit: %v", err)
				return
			}
			d.orbitH = h
			d.orbitOn = true
		}

	case ui.EventToggleRoom:
		d.roomOn = !d.roomOn
		if err := d.engine.EnableRoomEffects(d.roomOn); err != nil {
			log.Warnf("room effects: %v", err)
			d.roomOn = !d.roomOn
			return
		}
		if d.roomOn {
			d.engine.SetReverb(spatial.ReverbProperties{Gain: 0.7, Time: 1.6, Brightness: 0.4})
			d.engine.SetReflection(spatial.ReflectionProperties{
				RoomDimensions: spatial.Vec3{X: 8, Y: 3, Z: 10},
				Coefficients:   [6]float32{0.6, 0.6, 0.3, 0.7, 0.5, 0.5},
				Gain:           0.5,
			})
		}
	}
	d.pushScene()
}

func (d *Demo) orbitPos() spatial.Vec3 {
	const radius = 2.0
	return spatial.Vec3{
		X: float32(math.Cos(d.orbitAngle) * radius),
		Z: float32(math.Sin(d.orbitAngle) * radius),
	}
}

// advanceOrbit moves the orbiting source a step, about one revolution
// every ten seconds.
func (d *Demo) advanceOrbit() {
	if !d.orbitOn {
		return
	}
	d.orbitAngle += 2 * math.Pi / 200
	if err := d.engine.SetSourcePosition(d.orbitH, d.orbitPos()); err != nil {
		log.Debugf("orbit move: %v", err)
	}
}

func (d *Demo) pushStats() {
	if d.tui == nil {
		return
	}
	d.tui.PushStats(ui.StatsMsg{
		Stats:      d.engine.Stats(),
		Goroutines: d.goroutines,
		MemAlloc:   d.memAlloc,
	})
}

func (d *Demo) pushScene() {
	if d.tui == nil {
		return
	}
	d.tui.PushScene(ui.SceneMsg{
		Music:    d.musicOn,
		Ambience: d.ambienceOn,
		Orbit:    d.orbitOn,
		Room:     d.roomOn,
	})
}
