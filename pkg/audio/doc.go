// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the canonical format, SampleBuffer and sample conversions
// Package audio provides fundamental audio types and utilities for the
// soundstage engine.
//
// The engine's canonical format is interleaved float32 PCM at 48 kHz.
// Decoders and the asset layer normalize everything to this format before
// it reaches the real-time mixer.
//
// This package defines:
//   - Format: a PCM stream shape (sample rate, channels)
//   - SampleBuffer: an immutable decoded sound effect shared by the asset
//     cache and playing voices
//   - float32 ↔ int16 sample conversions used by device backends and the
//     monitor tap
//   - Tone: a sine generator for tests, examples and stream producers
//
// Example:
//
//	buf := audio.SineBuffer("beep", 440, 4800, 2)
//	fmt.Println(buf.Frames(), buf.Duration())
package audio
