// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides Decoder interface and implementations for WAV, MP3, FLAC, Vorbis, PCM and Opus
// Package decode provides audio decoders for the formats game assets ship
// in.
//
// Every decoder produces interleaved float32 PCM at the source's native
// sample rate and channel count; normalization to the engine's canonical
// format is the asset layer's job. File decoders implement the Decoder
// interface and are usually picked by extension:
//
//	f, _ := os.Open("explosion.wav")
//	d, err := decode.New("explosion.wav", f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	samples, err := decode.ReadAll(d)
//
// Supported file formats: WAV (16/24-bit), MP3, FLAC, Ogg Vorbis and
// headerless 16-bit PCM. Opus is supported as a packet decoder for the
// monitor stream rather than as a file format.
package decode
