// ABOUTME: Mixer control commands passed from the control thread to the audio thread
// ABOUTME: One flat Command struct with an Op discriminator so enqueueing never allocates
package mixer

import (
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
	"github.com/Soundstage-Audio/soundstage-go/pkg/ring"
	"github.com/Soundstage-Audio/soundstage-go/pkg/spatial"
)

// Handle identifies a playing voice or stream. Handles are assigned by the
// control side, strictly increasing, and never reused; a command whose
// handle no longer matches an active slot is a no-op.
type Handle uint64

// BusID indexes a configured bus. The master bus is always id 0.
type BusID int32

// MasterBus is the id of the master bus.
const MasterBus BusID = 0

// Op selects a Command's meaning.
type Op uint8

const (
	OpNone Op = iota
	// OpPlaySound starts a voice from Buffer on Bus with Gain, Pan or
	// Position, Priority and Loop. Allocates a voice slot, stealing if the
	// pool is full.
	OpPlaySound
	// OpStartStream binds Ring (with Channels) to a stream slot on Bus.
	OpStartStream
	// OpStopVoice fades the voice with Handle out over FadeMs and frees
	// its slot at fade completion. FadeMs zero stops immediately.
	OpStopVoice
	// OpStopStream is OpStopVoice for stream slots; the ring consumer is
	// closed when the slot is freed.
	OpStopStream
	// OpSetVoiceGain retargets the gain of the voice or stream with
	// Handle; the change is smoothed across the next block.
	OpSetVoiceGain
	// OpSetBusGain retargets a bus gain, smoothed the same way.
	OpSetBusGain
	// OpSetSourcePosition moves a spatially tracked voice or stream.
	OpSetSourcePosition
	// OpSetSourceParams updates spread/occlusion/rolloff of a spatially
	// tracked voice or stream.
	OpSetSourceParams
	// OpSetListenerPose moves the listener.
	OpSetListenerPose
	// OpEnableRoomEffects toggles room acoustics on the spatializer.
	OpEnableRoomEffects
	// OpSetReflection forwards reflection properties to the spatializer.
	OpSetReflection
	// OpSetReverb forwards reverb properties to the spatializer.
	OpSetReverb
)

// Command is the only value that crosses from the control thread to the
// audio thread. It is a single flat struct rather than per-op types so the
// queue stores it by value; the pointer fields are allocated control-side
// and treated as immutable once pushed.
type Command struct {
	Op     Op
	Handle Handle
	Bus    BusID

	Buffer   *audio.SampleBuffer // OpPlaySound
	Ring     *ring.Consumer      // OpStartStream
	Channels int                 // OpStartStream: interleaved channel count in the ring

	Gain     float32
	Priority float32
	Pan      float32 // -1 left .. +1 right, non-positional voices only
	FadeMs   float32
	Loop     bool
	Spatial  bool // request a dedicated spatial source for this voice/stream
	Enabled  bool // OpEnableRoomEffects

	Position spatial.Vec3
	Params   spatial.SourceParams
	Pose     spatial.Pose // OpSetListenerPose

	Reflection *spatial.ReflectionProperties // OpSetReflection
	Reverb     *spatial.ReverbProperties     // OpSetReverb
}
