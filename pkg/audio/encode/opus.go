// ABOUTME: Opus encoder implementation
// ABOUTME: Buffers float32 samples into 20ms frames and encodes Opus packets
package encode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxPacketBytes bounds a single encoded Opus packet.
const maxPacketBytes = 4000

// OpusEncoder compresses samples into Opus packets. Opus only accepts
// fixed frame durations, so input is buffered internally and packets
// come out once a full 20ms frame has accumulated.
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel in one 20ms frame
	pending    []float32
	packet     []byte
}

// NewOpus creates an Opus encoder. The sample rate must be one of
// 8000, 12000, 16000, 24000 or 48000 Hz.
func NewOpus(sampleRate, channels int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	frameSize := sampleRate / 50
	return &OpusEncoder{
		encoder:    enc,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
		pending:    make([]float32, 0, frameSize*channels*2),
		packet:     make([]byte, maxPacketBytes),
	}, nil
}

// FrameSize returns the number of samples per channel in one packet.
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode consumes samples and returns every packet completed by them.
func (e *OpusEncoder) Encode(samples []float32) ([][]byte, error) {
	e.pending = append(e.pending, samples...)

	frameSamples := e.frameSize * e.channels
	var packets [][]byte
	for len(e.pending) >= frameSamples {
		n, err := e.encoder.EncodeFloat32(e.pending[:frameSamples], e.packet)
		if err != nil {
			return packets, fmt.Errorf("opus encode failed: %w", err)
		}
		out := make([]byte, n)
		copy(out, e.packet[:n])
		packets = append(packets, out)

		remain := copy(e.pending, e.pending[frameSamples:])
		e.pending = e.pending[:remain]
	}
	return packets, nil
}

// Flush encodes any buffered partial frame, padded with silence.
// Returns nil when nothing is pending.
func (e *OpusEncoder) Flush() ([]byte, error) {
	if len(e.pending) == 0 {
		return nil, nil
	}

	frameSamples := e.frameSize * e.channels
	frame := make([]float32, frameSamples)
	copy(frame, e.pending)
	e.pending = e.pending[:0]

	n, err := e.encoder.EncodeFloat32(frame, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.packet[:n])
	return out, nil
}

// Close discards any buffered samples.
func (e *OpusEncoder) Close() error {
	e.pending = nil
	return nil
}
