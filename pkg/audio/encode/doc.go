// ABOUTME: Package documentation for encode
// ABOUTME: Describes the float32 PCM encoders used by the monitor tap
/*
Package encode compresses interleaved float32 samples into wire chunks.

Two encoders exist. PCM16Encoder packs every call into one raw
little-endian chunk. OpusEncoder buffers input to 20ms frame
boundaries and emits one Opus packet per complete frame, so a call
may return zero packets.

	enc, err := encode.NewOpus(48000, 2)
	if err != nil {
		log.Fatal(err)
	}
	defer enc.Close()

	packets, err := enc.Encode(samples)
	if err != nil {
		log.Fatal(err)
	}
	for _, pkt := range packets {
		send(pkt)
	}
*/
package encode
