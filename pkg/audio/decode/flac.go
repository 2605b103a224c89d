// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to float32 samples via mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// FLACDecoder decodes FLAC audio frame by frame. FLAC frames rarely line
// up with the caller's buffer, so leftover samples are carried between
// Read calls.
type FLACDecoder struct {
	stream  *flac.Stream
	format  audio.Format
	scale   float32
	pending []float32
}

// NewFLAC creates a FLAC decoder.
func NewFLAC(r io.Reader) (Decoder, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	info := stream.Info
	return &FLACDecoder{
		stream: stream,
		format: audio.Format{
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
		},
		scale: 1 / float32(int64(1)<<(info.BitsPerSample-1)),
	}, nil
}

// Format reports the stream's sample rate and channel count.
func (d *FLACDecoder) Format() audio.Format {
	return d.format
}

// Read decodes up to len(dst) samples.
func (d *FLACDecoder) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	written := 0
	for written < len(dst) {
		if len(d.pending) > 0 {
			n := copy(dst[written:], d.pending)
			d.pending = d.pending[n:]
			written += n
			continue
		}
		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			if written == 0 {
				return 0, io.EOF
			}
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("flac decode error: %w", err)
		}

		ch := d.format.Channels
		block := int(frame.BlockSize)
		interleaved := make([]float32, block*ch)
		for i := 0; i < block; i++ {
			for c := 0; c < ch; c++ {
				interleaved[i*ch+c] = float32(frame.Subframes[c].Samples[i]) * d.scale
			}
		}
		d.pending = interleaved
	}
	return written, nil
}

// Close releases decoder resources.
func (d *FLACDecoder) Close() error {
	return d.stream.Close()
}
