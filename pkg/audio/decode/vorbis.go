// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Vorbis streams to float32 samples via jfreymuth/oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// VorbisDecoder decodes Ogg Vorbis audio. The underlying library already
// produces interleaved float32, so this is a thin veneer.
type VorbisDecoder struct {
	reader *oggvorbis.Reader
	format audio.Format
}

// NewVorbis creates an Ogg Vorbis decoder.
func NewVorbis(r io.Reader) (Decoder, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ogg vorbis: %w", err)
	}
	return &VorbisDecoder{
		reader: reader,
		format: audio.Format{
			SampleRate: reader.SampleRate(),
			Channels:   reader.Channels(),
		},
	}, nil
}

// Format reports the stream's sample rate and channel count.
func (d *VorbisDecoder) Format() audio.Format {
	return d.format
}

// Read decodes up to len(dst) samples.
func (d *VorbisDecoder) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := d.reader.Read(dst)
	if n == 0 && err == io.EOF {
		return 0, io.EOF
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("vorbis decode error: %w", err)
	}
	return n, nil
}

// Close releases decoder resources.
func (d *VorbisDecoder) Close() error {
	return nil
}
