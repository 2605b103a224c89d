// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE PCM files to float32 samples
package decode

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// WAVDecoder decodes RIFF/WAVE files.
type WAVDecoder struct {
	decoder *wav.Decoder
	format  audio.Format
	scale   float32
	intBuf  *gaudio.IntBuffer
}

// NewWAV creates a WAV decoder. The header is parsed eagerly so Format is
// valid immediately.
func NewWAV(r io.ReadSeeker) (Decoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	bits := int(d.BitDepth)
	if bits != 16 && bits != 24 {
		return nil, fmt.Errorf("unsupported WAV bit depth: %d (supported: 16, 24)", bits)
	}
	return &WAVDecoder{
		decoder: d,
		format: audio.Format{
			SampleRate: int(d.SampleRate),
			Channels:   int(d.NumChans),
		},
		scale: 1 / float32(int64(1)<<(bits-1)),
	}, nil
}

// Format reports the file's sample rate and channel count.
func (d *WAVDecoder) Format() audio.Format {
	return d.format
}

// Read decodes up to len(dst) samples.
func (d *WAVDecoder) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if d.intBuf == nil || cap(d.intBuf.Data) < len(dst) {
		d.intBuf = &gaudio.IntBuffer{Data: make([]int, len(dst))}
	}
	d.intBuf.Data = d.intBuf.Data[:len(dst)]

	n, err := d.decoder.PCMBuffer(d.intBuf)
	if err != nil {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(d.intBuf.Data[i]) * d.scale
	}
	return n, nil
}

// Close releases decoder resources. The underlying reader is owned by the
// caller.
func (d *WAVDecoder) Close() error {
	return nil
}
