// ABOUTME: Spatial audio adapter package
// ABOUTME: Provides the Spatializer interface and the StereoPanner reference implementation
// Package spatial defines the renderer's contract with an external spatial
// audio engine.
//
// The real HRTF convolution and room acoustics live in a third-party DSP
// engine; this package specifies how the renderer feeds it (per-source
// interleaved blocks plus 3D parameters) and how it produces the final
// device mix (FillOutput). Every call is fallible and the renderer falls
// back to its own raw mix when FillOutput fails, so a broken or missing
// spatializer never silences playback.
//
// StereoPanner is the bundled reference implementation: constant-power
// azimuth panning with distance rolloff. It is the default collaborator in
// tests and on machines without a native spatial engine.
//
// Example:
//
//	sp, err := spatial.NewStereoPanner(spatial.Config{
//	    Channels:       2,
//	    MaxBlockFrames: 512,
//	    SampleRate:     48000,
//	})
//	id, err := sp.CreateSource(1)
//	sp.SetSourcePosition(id, spatial.Vec3{X: -2})
package spatial
