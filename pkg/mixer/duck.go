// ABOUTME: Sidechain ducking between buses with an attack/release envelope
// ABOUTME: Activity on a trigger bus pulls a target bus's gain toward an attenuation floor
package mixer

import "math"

// DuckRule attenuates Target while Trigger carries signal. The classic use
// is dialogue ducking music: rule {Trigger: dialogue, Target: music}.
type DuckRule struct {
	Trigger BusID
	Target  BusID
	// Threshold is the pre-gain peak on Trigger that engages the duck.
	// Zero means the default of 0.01.
	Threshold float32
	// Attenuation is the Target gain when fully ducked, clamped to [0,1].
	// Zero means the default of 0.3.
	Attenuation float32
	// AttackMs and ReleaseMs shape how fast the duck engages and lets go.
	// Zero means the defaults of 10 ms and 200 ms.
	AttackMs  float32
	ReleaseMs float32
}

func (r DuckRule) withDefaults() DuckRule {
	if r.Threshold == 0 {
		r.Threshold = 0.01
	}
	if r.Attenuation == 0 {
		r.Attenuation = 0.3
	}
	if r.Attenuation < 0 {
		r.Attenuation = 0
	} else if r.Attenuation > 1 {
		r.Attenuation = 1
	}
	if r.AttackMs == 0 {
		r.AttackMs = 10
	}
	if r.ReleaseMs == 0 {
		r.ReleaseMs = 200
	}
	return r
}

// duckState is one rule's envelope follower. env runs 0 (idle) to 1 (fully
// ducked) and is advanced once per block from the trigger bus peak.
type duckState struct {
	rule DuckRule
	env  float32
}

// advance moves the envelope toward 1 while the trigger peak is above
// threshold and back toward 0 otherwise, with a first-order smoothing
// coefficient derived from the block duration and the attack or release
// time.
func (d *duckState) advance(triggerPeak float32, frames, sampleRate int) {
	over := triggerPeak >= d.rule.Threshold
	x := float32(0)
	tc := d.rule.ReleaseMs
	if over {
		x = 1
		tc = d.rule.AttackMs
	}
	dt := float64(frames) / float64(sampleRate)
	coeff := float32(1 - math.Exp(-dt/float64(tc/1000)))
	d.env += (x - d.env) * coeff
}

// updateDucking advances every rule and recomputes each bus's duck target.
// Multiple rules on one target bus compose multiplicatively. The targets are
// applied to audio by applyGainAndDuck's per-sample ramp.
func updateDucking(ducks []duckState, g *busGraph, frames, sampleRate int) {
	if len(ducks) == 0 {
		return
	}
	for i := range g.buses {
		g.buses[i].duckTarget = 1
	}
	for i := range ducks {
		d := &ducks[i]
		d.advance(g.buses[d.rule.Trigger].peak, frames, sampleRate)
		t := &g.buses[d.rule.Target]
		t.duckTarget *= 1 - d.env*(1-d.rule.Attenuation)
	}
}
