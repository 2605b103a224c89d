// ABOUTME: Spatializer adapter interface and 3D parameter types
// ABOUTME: Defines the contract the renderer expects from an external spatial DSP engine
package spatial

import "errors"

var (
	// ErrInvalidSource is returned for operations on unknown source ids.
	ErrInvalidSource = errors.New("spatial: invalid source id")

	// ErrBadBufferSize is returned when a fed or filled buffer does not
	// match the configured block shape.
	ErrBadBufferSize = errors.New("spatial: buffer size mismatch")

	// ErrClosed is returned for operations after Close.
	ErrClosed = errors.New("spatial: closed")
)

// SourceID identifies a source registered with a spatializer. Zero is never
// a valid id.
type SourceID int32

// Vec3 is a position or direction in meters, right-handed, -Z forward.
type Vec3 struct {
	X, Y, Z float32
}

// Pose is a position plus orientation.
type Pose struct {
	Position Vec3
	Forward  Vec3
	Up       Vec3
}

// IdentityPose returns the origin pose looking down -Z.
func IdentityPose() Pose {
	return Pose{
		Forward: Vec3{Z: -1},
		Up:      Vec3{Y: 1},
	}
}

// SourceParams are per-source rendering parameters.
type SourceParams struct {
	// Spread widens a point source, 0 (point) to 1 (fully diffuse).
	Spread float32
	// Occlusion attenuates the direct path, 0 (clear) to 1 (blocked).
	Occlusion float32
	// Rolloff scales distance attenuation; 0 disables it.
	Rolloff float32
}

// ReflectionProperties describe early reflections of a rectangular room.
type ReflectionProperties struct {
	RoomDimensions Vec3
	// Coefficients holds per-surface reflectivity in the order
	// left, right, floor, ceiling, front, back.
	Coefficients [6]float32
	Gain         float32
}

// ReverbProperties describe the late reverb tail.
type ReverbProperties struct {
	Gain       float32
	Time       float32 // decay time scaler
	Brightness float32
}

// Config fixes the block shape a spatializer instance renders.
type Config struct {
	Channels       int
	MaxBlockFrames int
	SampleRate     int
}

// Spatializer is the renderer's view of an external spatial audio engine.
//
// The renderer drives it once per block from the audio callback thread:
// FeedSource for every spatially tracked source, parameter setters for
// pending changes, then FillOutput into the device buffer. Implementations
// must not block and must not allocate in these per-block calls; all
// methods are fallible and the renderer degrades to its raw mix when
// FillOutput reports failure.
//
// CreateSource and DestroySource are only called during renderer
// construction and shutdown, never per block.
type Spatializer interface {
	// CreateSource registers a source with the given channel count and
	// returns its id.
	CreateSource(channels int) (SourceID, error)

	// DestroySource releases a source id.
	DestroySource(id SourceID) error

	// FeedSource supplies one block of interleaved pre-spatialization
	// audio for a source. len(interleaved) must be a multiple of the
	// source's channel count and at most channels*MaxBlockFrames.
	FeedSource(id SourceID, interleaved []float32) error

	// SetSourcePosition moves a source; a source that has been positioned
	// is rendered positionally from then on.
	SetSourcePosition(id SourceID, pos Vec3) error

	// SetSourceGain sets a source's linear gain.
	SetSourceGain(id SourceID, gain float32) error

	// SetSourceParams sets spread, occlusion and rolloff.
	SetSourceParams(id SourceID, params SourceParams) error

	// SetListenerPose moves the listener.
	SetListenerPose(pose Pose) error

	// EnableRoomEffects toggles reflections and reverb.
	EnableRoomEffects(enabled bool) error

	// SetReflectionProperties configures early reflections.
	SetReflectionProperties(props ReflectionProperties) error

	// SetReverbProperties configures the reverb tail.
	SetReverbProperties(props ReverbProperties) error

	// FillOutput renders the spatialized mix of everything fed since the
	// last call into out and resets for the next block. Returns false on
	// failure, in which case the caller must fall back to its own mix.
	FillOutput(out []float32) bool

	// Close releases the engine. FillOutput returns false afterwards.
	Close() error
}
