// ABOUTME: PCM16 encoder implementation
// ABOUTME: Converts float32 samples to 16-bit little-endian PCM chunks
package encode

import (
	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// PCM16Encoder packs samples as raw 16-bit little-endian PCM.
// Every call yields exactly one chunk covering the whole input.
type PCM16Encoder struct{}

// NewPCM16 creates a PCM16 encoder.
func NewPCM16() *PCM16Encoder {
	return &PCM16Encoder{}
}

// Encode converts samples to a single PCM16 chunk.
func (e *PCM16Encoder) Encode(samples []float32) ([][]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	chunk := make([]byte, len(samples)*2)
	audio.PCM16Bytes(chunk, samples)
	return [][]byte{chunk}, nil
}

// Close is a no-op for PCM encoding.
func (e *PCM16Encoder) Close() error {
	return nil
}
