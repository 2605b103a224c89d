// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 audio to float32 samples via go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// MP3Decoder decodes MP3 audio. go-mp3 always emits 16-bit stereo PCM,
// upmixing mono files itself, so Format always reports two channels.
type MP3Decoder struct {
	decoder *mp3.Decoder
	byteBuf []byte
}

// NewMP3 creates an MP3 decoder.
func NewMP3(r io.Reader) (Decoder, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	return &MP3Decoder{decoder: d}, nil
}

// Format reports the decoded sample rate; channels are always 2.
func (d *MP3Decoder) Format() audio.Format {
	return audio.Format{SampleRate: d.decoder.SampleRate(), Channels: 2}
}

// Read decodes up to len(dst) samples.
func (d *MP3Decoder) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * 2
	if cap(d.byteBuf) < want {
		d.byteBuf = make([]byte, want)
	}
	buf := d.byteBuf[:want]

	n, err := io.ReadFull(d.decoder, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
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
func (d *MP3Decoder) Close() error {
	return nil
}
