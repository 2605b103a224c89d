// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for encoders turning float32 PCM into wire chunks
package encode

// Encoder turns interleaved float32 samples into zero or more wire chunks.
// Chunked output lets packet codecs buffer input internally and emit only
// complete packets; a single Encode call may therefore return nothing.
type Encoder interface {
	// Encode consumes samples and returns any completed chunks.
	Encode(samples []float32) ([][]byte, error)

	// Close releases encoder resources.
	Close() error
}
