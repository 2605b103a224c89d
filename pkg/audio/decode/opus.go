// ABOUTME: Opus packet decoder for the monitor stream
// ABOUTME: Decodes discrete Opus packets to float32 samples
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/Soundstage-Audio/soundstage-go/pkg/audio"
)

// maxOpusFrame is the largest Opus frame: 120 ms at 48 kHz.
const maxOpusFrame = 5760

// OpusPacketDecoder decodes discrete Opus packets, as carried by the
// monitor protocol. It is packet-oriented rather than a Decoder because
// Opus has no container here; each network message is one packet.
type OpusPacketDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
}

// NewOpusPackets creates a packet decoder for the given stream format.
func NewOpusPackets(sampleRate, channels int) (*OpusPacketDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &OpusPacketDecoder{
		decoder: dec,
		format:  audio.Format{SampleRate: sampleRate, Channels: channels},
	}, nil
}

// Format reports the stream's sample rate and channel count.
func (d *OpusPacketDecoder) Format() audio.Format {
	return d.format
}

// DecodePacket decodes one packet into dst and returns the number of
// samples written. dst must hold a full frame: 5760 * channels samples
// covers the worst case.
func (d *OpusPacketDecoder) DecodePacket(packet []byte, dst []float32) (int, error) {
	frames, err := d.decoder.DecodeFloat32(packet, dst)
	if err != nil {
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}
	return frames * d.format.Channels, nil
}

// Close releases decoder resources.
func (d *OpusPacketDecoder) Close() error {
	return nil
}
