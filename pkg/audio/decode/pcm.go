// ABOUTME: Raw PCM audio decoder
// ABOUTME: Decodes headerless 16-bit little-endian PCM to float32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// PCMDecoder decodes headerless 16-bit little-endian PCM. Raw captures
// carry no format metadata, so the caller supplies it.
type PCMDecoder struct {
	r       io.Reader
	format  audio.Format
	byteBuf []byte
}

// NewPCM creates a raw PCM decoder for the given stream format.
func NewPCM(r io.Reader, sampleRate, channels int) (Decoder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid raw PCM format: %d Hz, %d channels", sampleRate, channels)
	}
	return &PCMDecoder{
		r:      r,
		format: audio.Format{SampleRate: sampleRate, Channels: channels},
	}, nil
}

// Format reports the caller-declared sample rate and channel count.
func (d *PCMDecoder) Format() audio.Format {
	return d.format
}

// Read decodes up to len(dst) samples.
func (d *PCMDecoder) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * 2
	if cap(d.byteBuf) < want {
		d.byteBuf = make([]byte, want)
	}
	buf := d.byteBuf[:want]

	n, err := io.ReadFull(d.r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("pcm read error: %w", err)
	}
	samples := n / 2
	if samples == 0 {
		return 0, io.EOF
	}
	for i := 0; i < samples; i++ {
		dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return samples, nil
}

// Close releases decoder resources.
func (d *PCMDecoder) Close() error {
	return nil
}
