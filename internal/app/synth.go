// ABOUTME: Synthesized demo assets so the demo runs without audio files on disk
// ABOUTME: Footstep, voice line, music and rain loops built from oscillators and noise
package app

import (
	"math"
	"math/rand"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

const rate = float64(audio.CanonicalSampleRate)

// Footstep synthesizes a short pitch-dropping thump with a noise transient.
func Footstep() *audio.SampleBuffer {
	const frames = 5760 // 120 ms
	rng := rand.New(rand.NewSource(1))
	data := make([]float32, frames)
	phase := 0.0
	for i := range data {
		t := float64(i) / rate
		freq := 90 - 45*math.Min(t/0.12, 1)
		phase += 2 * math.Pi * freq / rate
		thump := math.Sin(phase) * math.Exp(-t*28)
		noise := (rng.Float64()*2 - 1) * math.Exp(-t*90) * 0.25
		data[i] = float32((thump + noise) * 0.8)
	}
	return &audio.SampleBuffer{Name: "footstep", Data: data, Channels: 1}
}

// VoiceLine synthesizes a wordless spoken phrase, a vibrato carrier with a
// syllable-rate amplitude wobble. It exists to exercise ducking, not to win
// a voice acting award.
func VoiceLine() *audio.SampleBuffer {
	const frames = 33600 // 700 ms
	const dur = 0.7
	data := make([]float32, frames)
	phase := 0.0
	for i := range data {
		t := float64(i) / rate
		carrier := 190 + 25*math.Sin(2*math.Pi*4.5*t)
		phase += 2 * math.Pi * carrier / rate
		env := math.Sin(math.Pi * t / dur)
		if env < 0 {
			env = 0
		}
		syllable := 0.55 + 0.45*math.Sin(2*math.Pi*3*t)
		data[i] = float32(math.Sin(phase) * math.Sqrt(env) * syllable * 0.7)
	}
	return &audio.SampleBuffer{Name: "voice-line", Data: data, Channels: 1}
}

// MusicLoop synthesizes a four second stereo chord pad. The voice
// frequencies are snapped to whole cycles over the loop so it repeats
// without a seam; the right channel gets a fixed phase offset for width.
func MusicLoop() *audio.SampleBuffer {
	const seconds = 4
	const frames = seconds * audio.CanonicalSampleRate
	chord := []float64{220, 277.25, 329.75}
	offsets := []float64{0.9, 1.7, 2.6}
	data := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		t := float64(i) / rate
		trem := 0.85 + 0.15*math.Sin(2*math.Pi*0.5*t)
		var l, r float64
		for v, f := range chord {
			l += math.Sin(2 * math.Pi * f * t)
			r += math.Sin(2*math.Pi*f*t + offsets[v])
		}
		data[i*2] = float32(l / 3 * 0.35 * trem)
		data[i*2+1] = float32(r / 3 * 0.35 * trem)
	}
	return &audio.SampleBuffer{Name: "music-loop", Data: data, Channels: 2}
}

// RainLoop synthesizes two seconds of stereo rain from low-passed noise.
// The filter runs past the loop end and the overrun is blended into the
// head so the seam stays continuous.
func RainLoop() *audio.SampleBuffer {
	const frames = 2 * audio.CanonicalSampleRate
	const fade = 2048
	rng := rand.New(rand.NewSource(7))

	raw := make([]float64, (frames+fade)*2)
	var lpL, lpR float64
	for i := 0; i < frames+fade; i++ {
		lpL += 0.12 * ((rng.Float64()*2 - 1) - lpL)
		lpR += 0.12 * ((rng.Float64()*2 - 1) - lpR)
		raw[i*2] = lpL * 0.9
		raw[i*2+1] = lpR * 0.9
	}

	data := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = float32(raw[i*2])
		data[i*2+1] = float32(raw[i*2+1])
	}
	for i := 0; i < fade; i++ {
		k := float64(i) / fade
		for c := 0; c < 2; c++ {
			tail := raw[(frames+i)*2+c]
			head := raw[i*2+c]
			data[i*2+c] = float32(tail*(1-k) + head*k)
		}
	}
	return &audio.SampleBuffer{Name: "rain-loop", Data: data, Channels: 2}
}

// OrbitHum synthesizes a one second looping hum for the orbiting source.
// Both partials complete whole cycles over the loop.
func OrbitHum() *audio.SampleBuffer {
	const frames = audio.CanonicalSampleRate
	data := make([]float32, frames)
	for i := range data {
		t := float64(i) / rate
		s := 0.6*math.Sin(2*math.Pi*220*t) + 0.4*math.Sin(2*math.Pi*110*t)
		data[i] = float32(s * 0.5)
	}
	return &audio.SampleBuffer{Name: "orbit-hum", Data: data, Channels: 1}
}
