// ABOUTME: Decoder interface and format sniffing for audio assets
// ABOUTME: Common interface for all decoders producing interleaved float32 PCM
package decode

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// ErrUnsupportedFormat is returned when no decoder handles a file.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder pulls interleaved float32 samples out of an encoded source at
// the source's native format. Read follows io.Reader conventions: it
// returns the number of samples written to dst, possibly short, and
// (0, io.EOF) once the source is exhausted.
type Decoder interface {
	// Format reports the decoded sample rate and channel count.
	Format() audio.Format

	// Read fills dst with up to len(dst) samples.
	Read(dst []float32) (int, error)

	// Close releases decoder resources.
	Close() error
}

// New picks a decoder from the file extension of name. The reader must
// seek because the WAV container is seeked during header parsing; files
// satisfy this naturally.
func New(name string, r io.ReadSeeker) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return NewWAV(r)
	case ".mp3":
		return NewMP3(r)
	case ".flac":
		return NewFLAC(r)
	case ".ogg", ".oga":
		return NewVorbis(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ReadAll drains a decoder into one buffer. Short sound effects are decoded
// whole this way; long-form content should stream through a ring instead.
func ReadAll(d Decoder) ([]float32, error) {
	var samples []float32
	buf := make([]float32, 8192)
	for {
		n, err := d.Read(buf)
		samples = append(samples, buf[:n]...)
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
	}
}
