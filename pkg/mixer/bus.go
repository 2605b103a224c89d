// ABOUTME: Named mixing buses with preallocated scratch buffers
// ABOUTME: Fixed processing order keeps floating-point summation bit-reproducible
package mixer

import "github.com/Soundstage-Audio/soundstage-go/pkg/spatial"

// BusConfig describes one bus at renderer initialization. Buses are static:
// none are created or destroyed at runtime. Index 0 is the master bus.
type BusConfig struct {
	Name string
	// Gain is the initial bus gain; zero means unity so an empty config
	// literal behaves sensibly.
	Gain float32
	// Spatial routes this bus through its own spatializer source instead
	// of summing it into master. Ignored on the master bus.
	Spatial bool
}

type bus struct {
	name       string
	scratch    []float32
	gain       float32
	target     float32
	duckGain   float32
	duckTarget float32
	peak       float32 // pre-gain block peak, drives ducking
	spatial    bool
	spatialID  spatial.SourceID
}

// busGraph owns every bus scratch buffer. All buffers are sized
// channels*maxFrames at construction and never reallocated.
type busGraph struct {
	buses []bus
}

func newBusGraph(configs []BusConfig, channels, maxFrames int) *busGraph {
	g := &busGraph{buses: make([]bus, len(configs))}
	for i, cfg := range configs {
		gain := cfg.Gain
		if gain == 0 {
			gain = 1
		}
		g.buses[i] = bus{
			name:       cfg.Name,
			scratch:    make([]float32, channels*maxFrames),
			gain:       gain,
			target:     gain,
			duckGain:   1,
			duckTarget: 1,
			spatial:    cfg.Spatial && i != int(MasterBus),
		}
	}
	return g
}

func (g *busGraph) valid(id BusID) bool {
	return id >= 0 && int(id) < len(g.buses)
}

func (g *busGraph) master() *bus {
	return &g.buses[MasterBus]
}

// beginBlock zeroes the first samples of every scratch buffer.
func (g *busGraph) beginBlock(samples int) {
	for i := range g.buses {
		s := g.buses[i].scratch[:samples]
		for j := range s {
			s[j] = 0
		}
	}
}

// measurePeaks records each bus's pre-gain block peak. Measured before
// gain so a quiet fader does not hide trigger activity from ducking rules.
func (g *busGraph) measurePeaks(samples int) {
	for i := range g.buses {
		b := &g.buses[i]
		peak := float32(0)
		for _, v := range b.scratch[:samples] {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		b.peak = peak
	}
}

// applyGainAndDuck scales every bus by its gain and ducking attenuation,
// both ramped per sample across the block so neither bus faders nor duck
// engagement produce discontinuities.
func (g *busGraph) applyGainAndDuck(frames, channels int) {
	for i := range g.buses {
		b := &g.buses[i]
		gStep := (b.target - b.gain) / float32(frames)
		dStep := (b.duckTarget - b.duckGain) / float32(frames)
		gn, d := b.gain, b.duckGain
		for f := 0; f < frames; f++ {
			gn += gStep
			d += dStep
			k := gn * d
			base := f * channels
			for c := 0; c < channels; c++ {
				b.scratch[base+c] *= k
			}
		}
		b.gain = b.target
		b.duckGain = b.duckTarget
	}
}

// sumIntoMaster adds every plain bus into master in configuration order.
// Spatial buses are skipped; their post-gain content feeds a dedicated
// spatializer source instead.
func (g *busGraph) sumIntoMaster(samples int) {
	m := g.buses[MasterBus].scratch[:samples]
	for i := 1; i < len(g.buses); i++ {
		b := &g.buses[i]
		if b.spatial {
			continue
		}
		for j, v := range b.scratch[:samples] {
			m[j] += v
		}
	}
}
